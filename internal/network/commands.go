package network

import (
	"context"
	"encoding/json"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/MRamiBalles/medsim/internal/domain/clinical"
	"github.com/MRamiBalles/medsim/internal/domain/rules"
	"github.com/MRamiBalles/medsim/internal/engine"
	domainerrors "github.com/MRamiBalles/medsim/internal/platform/errors"
	"github.com/MRamiBalles/medsim/internal/platform/logger"
	"github.com/MRamiBalles/medsim/internal/platform/otel"
)

// Command types accepted over the websocket and the HTTP API.
const (
	CmdStart      = "START"
	CmdSelect     = "SELECT"
	CmdHistory    = "HISTORY"
	CmdPhysical   = "PHYSICAL"
	CmdExam       = "EXAM"
	CmdTreatment  = "TREATMENT"
	CmdFlag       = "FLAG"
	CmdDiagnose   = "DIAGNOSE"
	CmdContinue   = "CONTINUE"
	CmdResetSave  = "RESET_SAVE"
	CmdSetMode    = "SET_MODE"
	CmdSetFilters = "SET_FILTERS"
	CmdSetCases   = "SET_CASES"
	CmdPause      = "PAUSE"
	CmdResume     = "RESUME"
)

// PlayerAction is an incoming command from the frontend.
type PlayerAction struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	PatientID string          `json:"patient_id,omitempty"` // empty targets the selected patient
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type startPayload struct {
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl"`
}

type keyPayload struct {
	Key string `json:"key"`
}

// flagPayload records a critical error; Set defaults to true.
type flagPayload struct {
	Key string `json:"key"`
	Set *bool  `json:"set,omitempty"`
}

type diagnosisPayload struct {
	Text string `json:"text"`
}

type modePayload struct {
	Mode string `json:"mode"`
}

type casesPayload struct {
	Cases []clinical.CaseTemplate `json:"cases"`
}

// Ack answers a single PlayerAction.
type Ack struct {
	Type         string         `json:"type"` // always "ack"
	RequestID    string         `json:"request_id,omitempty"`
	Command      string         `json:"command"`
	Outcome      engine.Outcome `json:"outcome,omitempty"`
	Report       *rules.Report  `json:"report,omitempty"`
	UsedDefaults bool           `json:"used_defaults,omitempty"`
	Error        *ErrorBody     `json:"error,omitempty"`
}

// ErrorBody is the wire form of a coded error.
type ErrorBody struct {
	Code    domainerrors.Code `json:"code"`
	Message string            `json:"message"`
}

// CommandRouter maps PlayerActions onto engine commands.
type CommandRouter struct {
	engine *engine.Engine
	logger *logger.Logger
}

func NewCommandRouter(e *engine.Engine, log *logger.Logger) *CommandRouter {
	return &CommandRouter{engine: e, logger: log}
}

// Handle runs action against the engine inside its own span. The returned
// Ack always carries the error, if any, in wire form.
func (cr *CommandRouter) Handle(ctx context.Context, action PlayerAction) (Ack, error) {
	action.Type = strings.ToUpper(strings.TrimSpace(action.Type))
	_, span := otel.Tracer().Start(ctx, "command "+action.Type)
	defer span.End()
	span.SetAttributes(
		attribute.String("medsim.command", action.Type),
		attribute.String("medsim.patient_id", action.PatientID),
	)

	ack := Ack{Type: "ack", RequestID: action.RequestID, Command: action.Type}
	err := cr.route(action, &ack)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		ack.Error = &ErrorBody{Code: domainerrors.CodeOf(err), Message: err.Error()}
		if ack.Error.Code == "" {
			ack.Error.Code = domainerrors.CodeInvalidCommand
		}
		cr.logger.Warn("command failed", "command", action.Type, "err", err)
	} else if ack.Outcome != "" {
		span.SetAttributes(attribute.String("medsim.outcome", string(ack.Outcome)))
	}
	return ack, err
}

func (cr *CommandRouter) route(action PlayerAction, ack *Ack) error {
	eng := cr.engine
	var err error

	switch action.Type {
	case CmdStart:
		var p startPayload
		if err = decodePayload(action, &p); err == nil {
			eng.Start(engine.Profile{Name: p.Name, AvatarURL: p.AvatarURL})
		}
	case CmdSelect:
		if action.PatientID == "" {
			return invalid(action, "patient_id is required")
		}
		eng.SelectPatient(action.PatientID)
	case CmdHistory:
		ack.Outcome, err = cr.perform(action.PatientID, engine.TakeHistory{})
	case CmdPhysical:
		ack.Outcome, err = cr.perform(action.PatientID, engine.PhysicalExam{})
	case CmdExam:
		var p keyPayload
		if err = decodeKey(action, &p); err == nil {
			ack.Outcome, err = cr.perform(action.PatientID, engine.RequestExam{Key: clinical.ExamKey(p.Key)})
		}
	case CmdTreatment:
		var p keyPayload
		if err = decodeKey(action, &p); err == nil {
			ack.Outcome, err = cr.perform(action.PatientID, engine.GiveTreatment{Key: clinical.TreatmentKey(p.Key)})
		}
	case CmdFlag:
		var p flagPayload
		if err = decodePayload(action, &p); err != nil {
			return err
		}
		if strings.TrimSpace(p.Key) == "" {
			return invalid(action, "payload.key is required")
		}
		set := p.Set == nil || *p.Set
		ack.Outcome, err = cr.perform(action.PatientID, engine.SetCriticalFlag{Key: clinical.FlagKey(p.Key), Set: set})
	case CmdDiagnose:
		var p diagnosisPayload
		if err = decodePayload(action, &p); err != nil {
			return err
		}
		if action.PatientID != "" {
			ack.Outcome, err = eng.Perform(action.PatientID, engine.FinalDiagnosis{Text: p.Text})
			return err
		}
		ack.Outcome = engine.OutcomeIgnored
		if ack.Report = eng.Diagnose(p.Text); ack.Report != nil {
			ack.Outcome = engine.OutcomeApplied
		}
	case CmdContinue:
		eng.ContinueAfterFeedback()
	case CmdResetSave:
		eng.ResetSave()
	case CmdSetMode:
		var p modePayload
		if err = decodePayload(action, &p); err == nil {
			eng.SetMode(rules.ParseMode(p.Mode))
		}
	case CmdSetFilters:
		var f clinical.Filter
		if err = decodePayload(action, &f); err == nil {
			eng.SetContentFilters(f)
		}
	case CmdSetCases:
		var p casesPayload
		if err = decodePayload(action, &p); err == nil {
			ack.UsedDefaults = eng.SetCases(p.Cases)
		}
	case CmdPause:
		eng.Pause()
	case CmdResume:
		eng.Resume()
	default:
		return invalid(action, "unknown command type")
	}
	return err
}

func (cr *CommandRouter) perform(patientID string, a engine.Action) (engine.Outcome, error) {
	eng := cr.engine
	if patientID != "" {
		return eng.Perform(patientID, a)
	}
	switch a := a.(type) {
	case engine.TakeHistory:
		return eng.DoHistory()
	case engine.PhysicalExam:
		return eng.DoPhysical()
	case engine.RequestExam:
		return eng.RequestExam(a.Key)
	case engine.GiveTreatment:
		return eng.ApplyTreatment(a.Key)
	case engine.SetCriticalFlag:
		return eng.SetCriticalFlag(a.Key, a.Set)
	}
	return engine.OutcomeIgnored, nil
}

func decodePayload(action PlayerAction, v any) error {
	if len(action.Payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(action.Payload, v); err != nil {
		return domainerrors.Wrap(domainerrors.CodeInvalidCommand, "malformed "+action.Type+" payload", err)
	}
	return nil
}

func decodeKey(action PlayerAction, p *keyPayload) error {
	if err := decodePayload(action, p); err != nil {
		return err
	}
	if strings.TrimSpace(p.Key) == "" {
		return invalid(action, "payload.key is required")
	}
	return nil
}

func invalid(action PlayerAction, msg string) error {
	return domainerrors.WithMetadata(domainerrors.CodeInvalidCommand, msg,
		map[string]string{"type": action.Type})
}
