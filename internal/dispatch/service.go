package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/minjaecho/defectwatch-backend/internal/defects"
	"github.com/minjaecho/defectwatch-backend/pkg/calendar"
	"github.com/minjaecho/defectwatch-backend/pkg/chat"
	"github.com/minjaecho/defectwatch-backend/pkg/db/models"
	"github.com/minjaecho/defectwatch-backend/pkg/enums"
	pkgerrors "github.com/minjaecho/defectwatch-backend/pkg/errors"
	"github.com/minjaecho/defectwatch-backend/pkg/logger"
)

const defaultAnswerTimeout = 120 * time.Second

// ChatSender delivers messages to the operator channel. Implemented by
// pkg/chat.
type ChatSender interface {
	Send(ctx context.Context, msg chat.Message) error
}

// Answerer answers free-form questions about a defect image. Implemented
// by pkg/vision.
type Answerer interface {
	Answer(ctx context.Context, imageRef string, kind enums.QuestionKind, hint string) (string, error)
}

// RepairScheduler books repair work on the shared calendar. Implemented
// by pkg/calendar.
type RepairScheduler interface {
	CreateEvent(ctx context.Context, event calendar.Event) (string, error)
}

// ScheduleResult reports a booked repair.
type ScheduleResult struct {
	Defect    *models.Defect `json:"defect"`
	EventLink string         `json:"event_link"`
}

// Service drives the operator-facing side of the defect lifecycle:
// alert cards, list browsing, status changes, follow-up questions and
// repair scheduling.
type Service interface {
	SendOverview(ctx context.Context) error
	SendDetail(ctx context.Context, defectID string) error
	RequestStatusChange(ctx context.Context, defectID string, target enums.RepairStatus) (*models.Defect, error)
	AskFollowup(ctx context.Context, interactionID, defectID string, kind enums.QuestionKind) error
	ScheduleRepair(ctx context.Context, defectID string, date time.Time, note string) (*ScheduleResult, error)
	Wait()
}

type serviceImpl struct {
	defects   defects.Service
	sender    ChatSender
	answerer  Answerer
	scheduler RepairScheduler
	logg      *logger.Logger

	answerTimeout time.Duration
	wg            sync.WaitGroup
}

// NewService wires the dispatcher. Answerer and scheduler may be nil
// when the corresponding collaborator is not configured; the operations
// that need them fail with a dependency error instead.
func NewService(defectsSvc defects.Service, sender ChatSender, answerer Answerer, scheduler RepairScheduler, logg *logger.Logger) (Service, error) {
	if defectsSvc == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "defect service required")
	}
	if sender == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "chat sender required")
	}
	return &serviceImpl{
		defects:       defectsSvc,
		sender:        sender,
		answerer:      answerer,
		scheduler:     scheduler,
		logg:          logg,
		answerTimeout: defaultAnswerTimeout,
	}, nil
}

func (s *serviceImpl) SendOverview(ctx context.Context) error {
	records, err := s.defects.List(ctx, defects.ListParams{SortByUrgency: true})
	if err != nil {
		return err
	}
	return s.sender.Send(ctx, BuildOverview(records))
}

func (s *serviceImpl) SendDetail(ctx context.Context, defectID string) error {
	record, err := s.defects.Get(ctx, defectID)
	if err != nil {
		return err
	}
	return s.sender.Send(ctx, BuildAlert(*record))
}

// RequestStatusChange applies the transition and pushes a refreshed card
// so the channel reflects the new action set. An illegal transition is
// returned unchanged; the card is not touched.
func (s *serviceImpl) RequestStatusChange(ctx context.Context, defectID string, target enums.RepairStatus) (*models.Defect, error) {
	record, err := s.defects.Transition(ctx, defectID, target)
	if err != nil {
		return nil, err
	}

	if err := s.sender.Send(ctx, BuildAlert(*record)); err != nil {
		s.warn(ctx, defectID, "status card refresh failed", err)
	}
	return record, nil
}

// AskFollowup acknowledges immediately and delivers the model's answer
// on the same interaction once inference finishes. The stored
// classification is handed to the model as context so answers do not
// contradict the record.
func (s *serviceImpl) AskFollowup(ctx context.Context, interactionID, defectID string, kind enums.QuestionKind) error {
	if s.answerer == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "image analysis is not configured")
	}
	if !kind.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown follow-up question")
	}

	record, err := s.defects.Get(ctx, defectID)
	if err != nil {
		return err
	}

	ack := chat.Message{
		Title:         alertTitle(*record),
		Body:          "Analyzing the image, answer coming shortly.",
		InteractionID: interactionID,
	}
	if err := s.sender.Send(ctx, ack); err != nil {
		return err
	}

	s.wg.Add(1)
	go func(record models.Defect) {
		defer s.wg.Done()
		defer func() {
			if rec := recover(); rec != nil && s.logg != nil {
				bg := s.logg.WithDefectID(context.Background(), record.ID)
				s.logg.Error(bg, "follow-up panic recovered", fmt.Errorf("panic: %v", rec))
			}
		}()

		bg, cancel := context.WithTimeout(context.Background(), s.answerTimeout)
		defer cancel()
		s.deliverAnswer(bg, interactionID, record, kind)
	}(*record)
	return nil
}

func (s *serviceImpl) deliverAnswer(ctx context.Context, interactionID string, record models.Defect, kind enums.QuestionKind) {
	reply := chat.Message{
		Title:         alertTitle(record),
		InteractionID: interactionID,
	}

	answer, err := s.answerer.Answer(ctx, record.Image, kind, classificationHint(record))
	if err != nil {
		s.warn(ctx, record.ID, "follow-up answer failed", err)
		reply.Body = "The image analysis did not produce an answer. Try again later."
	} else {
		reply.Body = answer
	}

	if err := s.sender.Send(ctx, reply); err != nil {
		s.warn(ctx, record.ID, "follow-up delivery failed", err)
	}
}

// ScheduleRepair books the calendar event first and only then moves the
// record to in-progress. A calendar failure leaves the status untouched
// so the channel never shows a repair as scheduled without an event
// backing it.
func (s *serviceImpl) ScheduleRepair(ctx context.Context, defectID string, date time.Time, note string) (*ScheduleResult, error) {
	if s.scheduler == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "repair calendar is not configured")
	}

	record, err := s.defects.Get(ctx, defectID)
	if err != nil {
		return nil, err
	}
	if record.RepairStatus.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "repair already completed").
			WithDetails(map[string]any{"status": record.RepairStatus})
	}

	link, err := s.scheduler.CreateEvent(ctx, calendar.Event{
		Date:        date,
		Title:       fmt.Sprintf("Repair: %s", alertTitle(*record)),
		Description: scheduleDescription(*record, note),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "repair was not scheduled")
	}

	// Re-booking while already in progress is allowed and does not
	// touch the status.
	if record.RepairStatus == enums.RepairStatusInProgress {
		return &ScheduleResult{Defect: record, EventLink: link}, nil
	}

	updated, err := s.defects.Transition(ctx, defectID, enums.RepairStatusInProgress)
	if err != nil {
		appErr := pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "event booked but status unchanged")
		return nil, appErr.WithDetails(map[string]any{"event_link": link})
	}

	if err := s.sender.Send(ctx, BuildAlert(*updated)); err != nil {
		s.warn(ctx, defectID, "schedule card refresh failed", err)
	}
	return &ScheduleResult{Defect: updated, EventLink: link}, nil
}

func scheduleDescription(record models.Defect, note string) string {
	description := fmt.Sprintf("Defect %s at %s", record.ID, locationLine(record))
	if record.Classified() {
		description += fmt.Sprintf("\nClassified as %s, %s urgency", record.DefectType, record.Urgency)
	}
	if note != "" {
		description += "\n" + note
	}
	return description
}

// Wait blocks until pending follow-up answers have been delivered.
func (s *serviceImpl) Wait() {
	s.wg.Wait()
}

func (s *serviceImpl) warn(ctx context.Context, defectID, msg string, err error) {
	if s.logg == nil {
		return
	}
	ctx = s.logg.WithDefectID(ctx, defectID)
	s.logg.Error(ctx, msg, err)
}
