package utils

import (
	"strconv"
	"strings"
	"time"
)

// PostgresParams параметры подключения к журналу в PostgreSQL
type PostgresParams struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	PoolSize        int
	ConnectTimeout  time.Duration
	ApplicationName string
}

// Validate проверяет параметры подключения
func (p PostgresParams) Validate() error {
	switch {
	case p.Host == "":
		return ErrStorageEmptyHostName
	case p.Port < 0 || p.Port > 65535:
		return ErrStorageInvalidPortNumber
	case p.User == "":
		return ErrStorageEmptyUsername
	case p.Password == "":
		return ErrStorageEmptyPassword
	case p.DBName == "":
		return ErrStorageInvalidDatabaseName
	case p.SSLMode == "":
		return ErrStorageInvalidSslMode
	case p.ConnectTimeout < 0:
		return ErrStorageInvalidTimeout
	case p.PoolSize < 0:
		return ErrStorageInvalidPoolSize
	}
	return nil
}

// DSN строка подключения в формате key=value, которую понимает pgxpool.
// Значения с пробелами и кавычками экранируются.
func (p PostgresParams) DSN() (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}

	parts := []string{
		"host=" + quoteDSN(p.Host),
		"port=" + strconv.Itoa(p.Port),
		"user=" + quoteDSN(p.User),
		"password=" + quoteDSN(p.Password),
		"dbname=" + quoteDSN(p.DBName),
		"sslmode=" + quoteDSN(p.SSLMode),
	}
	if p.ConnectTimeout > 0 {
		parts = append(parts, "connect_timeout="+strconv.Itoa(int(p.ConnectTimeout.Seconds())))
	}
	if p.PoolSize > 0 {
		parts = append(parts, "pool_max_conns="+strconv.Itoa(p.PoolSize))
	}
	if p.ApplicationName != "" {
		parts = append(parts, "application_name="+quoteDSN(p.ApplicationName))
	}
	return strings.Join(parts, " "), nil
}

func quoteDSN(v string) string {
	if v != "" && !strings.ContainsAny(v, ` '\`) {
		return v
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}
