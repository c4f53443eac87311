// Package guard перехватывает навигацию при наличии несохраненных изменений.
//
// Guard хранит только состояние перехвата. Сохранение и откат изменений
// выполняет вызывающая сторона, после чего сообщает результат через Proceed.
package guard

import (
	"errors"
	"fmt"

	"github.com/athebyme/gomarket-admin/internal/domain/models"
)

// State состояние охранника навигации
type State string

const (
	StateIdle                       State = "idle"
	StateInterceptedPendingDecision State = "intercepted_pending_decision"
)

// IntentKind тип навигационного намерения
type IntentKind string

const (
	IntentSwitchTab IntentKind = "switch_tab"
	IntentBack      IntentKind = "back"
	IntentLeave     IntentKind = "leave"
	IntentReload    IntentKind = "reload"
)

// Decision решение пользователя в диалоге подтверждения
type Decision string

const (
	DecisionSave    Decision = "save"
	DecisionDiscard Decision = "discard"
	DecisionCancel  Decision = "cancel"
)

// Action действие, которое нужно выполнить после разрешения навигации
type Action string

const (
	ActionNone      Action = "none"
	ActionSwitchTab Action = "switch_tab"
	ActionBack      Action = "navigate_back"
	ActionLeave     Action = "leave_editor"
	ActionReload    Action = "reload"
)

var (
	ErrInvalidIntent   = errors.New("invalid navigation intent")
	ErrInvalidDecision = errors.New("invalid navigation decision")
	ErrNoPendingIntent = errors.New("no pending navigation intent")
)

// Intent намерение покинуть текущее состояние редактора
type Intent struct {
	Kind IntentKind     `json:"kind"`
	Tab  models.Section `json:"tab,omitempty"`
}

// Outcome результат запроса навигации
type Outcome struct {
	Proceed     bool           `json:"proceed"`
	Intercepted bool           `json:"intercepted"`
	Action      Action         `json:"action"`
	Tab         models.Section `json:"tab,omitempty"`
}

// Guard конечный автомат охранника навигации одной сессии редактора
type Guard struct {
	tabs      []models.Section
	activeTab models.Section
	state     State
	pending   *Intent
}

// New создает охранника с набором вкладок и начальной вкладкой.
// Неизвестная начальная вкладка заменяется первой.
func New(tabs []models.Section, initial models.Section) *Guard {
	g := &Guard{
		tabs:  append([]models.Section(nil), tabs...),
		state: StateIdle,
	}
	g.activeTab = g.ParseTab(string(initial))
	return g
}

// ParseTab возвращает вкладку из параметра URL или первую вкладку,
// если параметр пуст или неизвестен
func (g *Guard) ParseTab(raw string) models.Section {
	for _, tab := range g.tabs {
		if string(tab) == raw {
			return tab
		}
	}
	if len(g.tabs) == 0 {
		return ""
	}
	return g.tabs[0]
}

// State текущее состояние
func (g *Guard) State() State { return g.state }

// ActiveTab активная вкладка
func (g *Guard) ActiveTab() models.Section { return g.activeTab }

// Pending возвращает перехваченное намерение
func (g *Guard) Pending() (Intent, bool) {
	if g.pending == nil {
		return Intent{}, false
	}
	return *g.pending, true
}

// Request обрабатывает навигационное намерение.
// При наличии изменений намерение перехватывается; новое намерение
// заменяет ранее перехваченное.
func (g *Guard) Request(intent Intent, dirty bool) (Outcome, error) {
	if err := g.validate(&intent); err != nil {
		return Outcome{}, err
	}

	if intent.Kind == IntentSwitchTab && intent.Tab == g.activeTab && g.state == StateIdle {
		return Outcome{Proceed: true, Action: ActionNone, Tab: g.activeTab}, nil
	}

	if dirty {
		g.state = StateInterceptedPendingDecision
		g.pending = &intent
		return Outcome{Intercepted: true, Action: ActionNone, Tab: g.activeTab}, nil
	}

	g.state = StateIdle
	g.pending = nil
	return g.execute(intent), nil
}

// Cancel отбрасывает перехваченное намерение
func (g *Guard) Cancel() error {
	if g.pending == nil {
		return ErrNoPendingIntent
	}
	g.state = StateIdle
	g.pending = nil
	return nil
}

// Proceed выполняет перехваченное намерение после сохранения или отката изменений
func (g *Guard) Proceed() (Outcome, error) {
	if g.pending == nil {
		return Outcome{}, ErrNoPendingIntent
	}
	intent := *g.pending
	g.state = StateIdle
	g.pending = nil
	return g.execute(intent), nil
}

func (g *Guard) execute(intent Intent) Outcome {
	switch intent.Kind {
	case IntentSwitchTab:
		g.activeTab = intent.Tab
		return Outcome{Proceed: true, Action: ActionSwitchTab, Tab: intent.Tab}
	case IntentBack:
		return Outcome{Proceed: true, Action: ActionBack, Tab: g.activeTab}
	case IntentLeave:
		return Outcome{Proceed: true, Action: ActionLeave, Tab: g.activeTab}
	default:
		return Outcome{Proceed: true, Action: ActionReload, Tab: g.activeTab}
	}
}

func (g *Guard) validate(intent *Intent) error {
	switch intent.Kind {
	case IntentSwitchTab:
		for _, tab := range g.tabs {
			if tab == intent.Tab {
				return nil
			}
		}
		return fmt.Errorf("%w: unknown tab %q", ErrInvalidIntent, intent.Tab)
	case IntentBack, IntentLeave, IntentReload:
		intent.Tab = ""
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidIntent, intent.Kind)
	}
}

// ParseDecision проверяет решение пользователя
func ParseDecision(raw string) (Decision, error) {
	switch d := Decision(raw); d {
	case DecisionSave, DecisionDiscard, DecisionCancel:
		return d, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDecision, raw)
	}
}

// UnloadConfirmationRequired сообщает, нужно ли показать нативный диалог
// браузера при закрытии или перезагрузке страницы
func UnloadConfirmationRequired(dirty bool) bool {
	return dirty
}
