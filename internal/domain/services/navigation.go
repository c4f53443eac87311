package services

import (
	"context"

	"github.com/athebyme/gomarket-admin/internal/domain/guard"
	"github.com/athebyme/gomarket-admin/internal/domain/models"
	"github.com/athebyme/gomarket-admin/internal/metrics"
	"github.com/athebyme/gomarket-admin/pkg/interfaces"
)

// NavigationResult результат навигационного запроса
type NavigationResult struct {
	Outcome  guard.Outcome `json:"outcome"`
	Session  *SessionView  `json:"session"`
	Redirect string        `json:"redirect,omitempty"`
}

// Navigate передает намерение охраннику. При несохраненных изменениях
// намерение перехватывается до решения пользователя, иначе выполняется.
func (s *EditorService) Navigate(ctx context.Context, sessionID string, intent guard.Intent) (*NavigationResult, error) {
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	if sess.closed {
		sess.mu.Unlock()
		return nil, models.ErrSessionClosed
	}
	outcome, err := sess.guard.Request(intent, sess.isDirty())
	if err != nil {
		sess.mu.Unlock()
		return nil, err
	}
	if outcome.Intercepted {
		view := sess.view()
		sess.mu.Unlock()
		metrics.GuardInterceptions.WithLabelValues(string(intent.Kind)).Inc()
		s.logger.DebugWithContext(ctx, "Навигация перехвачена",
			interfaces.LogField{Key: "session_id", Value: sess.id},
			interfaces.LogField{Key: "intent", Value: string(intent.Kind)},
			interfaces.LogField{Key: "dirty_sections", Value: view.DirtySections},
		)
		return &NavigationResult{Outcome: outcome, Session: view}, nil
	}
	sess.mu.Unlock()

	return s.execute(ctx, sess, outcome)
}

// Resolve применяет решение пользователя к перехваченному намерению.
// save сохраняет все грязные секции и продолжает навигацию только при
// успехе всех сохранений; discard отбрасывает изменения; cancel остается
// на месте.
func (s *EditorService) Resolve(ctx context.Context, sessionID string, decision guard.Decision) (*NavigationResult, error) {
	sess, err := s.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	if sess.closed {
		sess.mu.Unlock()
		return nil, models.ErrSessionClosed
	}
	if _, ok := sess.guard.Pending(); !ok {
		sess.mu.Unlock()
		return nil, guard.ErrNoPendingIntent
	}

	switch decision {
	case guard.DecisionCancel:
		_ = sess.guard.Cancel()
		view := sess.view()
		sess.mu.Unlock()
		metrics.GuardDecisions.WithLabelValues(string(decision), metrics.OutcomeOK).Inc()
		return &NavigationResult{Outcome: guard.Outcome{Action: guard.ActionNone, Tab: view.ActiveTab}, Session: view}, nil

	case guard.DecisionDiscard:
		s.discard(sess)
		outcome, err := sess.guard.Proceed()
		sess.mu.Unlock()
		if err != nil {
			return nil, err
		}
		metrics.GuardDecisions.WithLabelValues(string(decision), metrics.OutcomeOK).Inc()
		s.publish(ctx, sess, models.EventChangesDiscarded, saveScope{}, nil, "")
		return s.execute(ctx, sess, outcome)

	case guard.DecisionSave:
		sess.mu.Unlock()
		if err := s.saveAll(ctx, sess); err != nil {
			metrics.GuardDecisions.WithLabelValues(string(decision), metrics.OutcomeError).Inc()
			return nil, err
		}
		sess.mu.Lock()
		outcome, err := sess.guard.Proceed()
		sess.mu.Unlock()
		if err != nil {
			// намерение отменено, пока шло сохранение
			return nil, err
		}
		metrics.GuardDecisions.WithLabelValues(string(decision), metrics.OutcomeOK).Inc()
		return s.execute(ctx, sess, outcome)

	default:
		sess.mu.Unlock()
		_, err := guard.ParseDecision(string(decision))
		return nil, err
	}
}

// discard отбрасывает несохраненные изменения; вызывается под mu
func (s *EditorService) discard(sess *Session) {
	switch s.opts.DiscardMode {
	case DiscardRevert:
		sess.working = sess.baseline.Record()
		sess.staged = make(map[string]models.PendingFile)
	default:
		sess.dropUnpersisted()
		sess.baseline = s.engine.CaptureBaseline(sess.working)
	}
	sess.refresh(s.engine, s.now())
}

// execute выполняет разрешенное намерение
func (s *EditorService) execute(ctx context.Context, sess *Session, outcome guard.Outcome) (*NavigationResult, error) {
	result := &NavigationResult{Outcome: outcome}

	switch outcome.Action {
	case guard.ActionReload:
		if err := s.reload(ctx, sess); err != nil {
			return nil, err
		}
	case guard.ActionLeave:
		s.closeSession(ctx, sess)
		result.Redirect = s.opts.ListPath
		sess.mu.Lock()
		result.Session = sess.view()
		sess.mu.Unlock()
		return result, nil
	}

	sess.mu.Lock()
	result.Session = sess.view()
	draft := sess.draft()
	sess.mu.Unlock()
	s.registry.SaveDraft(ctx, draft)
	return result, nil
}

// reload заново загружает товар; рабочая копия и снимок заменяются
func (s *EditorService) reload(ctx context.Context, sess *Session) error {
	record, err := s.client.Fetch(ctx, sess.shopID, sess.recordID)
	if err != nil {
		if models.IsFatal(err) {
			s.closeSession(ctx, sess)
		}
		return err
	}
	working := s.engine.Normalize(record)

	sess.mu.Lock()
	if sess.closed {
		sess.mu.Unlock()
		return models.ErrSessionClosed
	}
	sess.working = working
	sess.baseline = s.engine.CaptureBaseline(working)
	sess.staged = make(map[string]models.PendingFile)
	sess.refresh(s.engine, s.now())
	sess.mu.Unlock()

	s.publish(ctx, sess, models.EventRecordReloaded, saveScope{}, nil, record.Version)
	s.logger.InfoWithContext(ctx, "Товар перезагружен",
		interfaces.LogField{Key: "session_id", Value: sess.id},
		interfaces.LogField{Key: "version", Value: record.Version},
	)
	return nil
}
