package triage

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/caresight/caresight/internal/domain/patient"
	"github.com/caresight/caresight/internal/platform/llm"
	"github.com/caresight/caresight/internal/platform/telemetry"
)

// Classification sources recorded on persisted assessments.
const (
	SourceLLM       = "llm"
	SourceHeuristic = "heuristic"
	SourceDefault   = "default"
)

// Result carries a finished assessment together with which path produced it
// and the display payload the report renderer consumes.
type Result struct {
	Assessment   *UrgencyAssessment `json:"assessment"`
	Source       string             `json:"source"`
	LevelLabel   string             `json:"level_label"`
	LevelDetail  string             `json:"level_detail"`
	ReportPeriod string             `json:"report_period"`
	TargetStatus map[string]string  `json:"target_status"`
}

// Service runs the triage pipeline: summarize the bundle, analyze task
// progress, classify (LLM first, heuristic on failure), then verify against
// the safety rules. It holds no per-request state; concurrent runs need no
// coordination.
type Service struct {
	classifier *Classifier
	tasks      *TaskProgressAnalyzer
	repo       AssessmentRepository
	log        zerolog.Logger
}

// NewService wires the pipeline. client may be nil, which disables the LLM
// paths entirely; repo may be nil, which disables persistence.
func NewService(client llm.ChatClient, repo AssessmentRepository, logger zerolog.Logger) *Service {
	return &Service{
		classifier: NewClassifier(client, logger),
		tasks:      NewTaskProgressAnalyzer(client, logger),
		repo:       repo,
		log:        logger,
	}
}

// Assess runs the full pipeline over one patient's bundle. It never returns
// an error for classification failures: the LLM path degrades to the
// heuristic engine, and a panic anywhere in the computation degrades to the
// fixed needs-human-review assessment. The returned result is always
// well-formed and already verified.
func (s *Service) Assess(ctx context.Context, b *patient.Bundle) *Result {
	start := time.Now()
	result := s.assess(ctx, b)
	telemetry.ObserveAssessment(string(result.Assessment.Level), result.Source, time.Since(start))

	s.log.Info().
		Str("patient_id", b.Patient.ID.String()).
		Str("level", string(result.Assessment.Level)).
		Int("risk_score", result.Assessment.RiskScore).
		Str("source", result.Source).
		Bool("verification_passed", result.Assessment.VerificationPassed).
		Msg("urgency assessment completed")

	return result
}

func (s *Service) assess(ctx context.Context, b *patient.Bundle) (result *Result) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Msg("assessment pipeline panicked, returning default assessment")
			result = s.wrap(b, DefaultAssessment(fmt.Sprintf("internal evaluation failure: %v", r)), SourceDefault)
		}
	}()

	snapshot := BuildMonitoringSnapshot(b.Physio)
	adherence := BuildAdherenceSummary(b.Adherence)
	progress := s.tasks.Analyze(ctx, b)

	in := Input{
		Patient:    b.Patient,
		Monitoring: snapshot,
		Adherence:  adherence,
		Lifestyle:  b.Lifestyle,
		Tasks:      b.Tasks,
		Progress:   progress,
	}

	assessment, source := s.classify(ctx, in)
	verified := Verify(assessment, snapshot, adherence, progress)
	if !verified.VerificationPassed {
		telemetry.VerificationEscalationsTotal.Inc()
		s.log.Warn().
			Str("from", string(assessment.Level)).
			Str("to", string(verified.Level)).
			Str("notes", verified.VerificationNotes).
			Msg("verification escalated assessment")
	}

	return s.wrap(b, verified, source)
}

// classify attempts the LLM path and falls back to the deterministic
// heuristic on any error. The decision is explicit here rather than hidden
// in exception handling.
func (s *Service) classify(ctx context.Context, in Input) (*UrgencyAssessment, string) {
	assessment, err := s.classifier.Classify(ctx, in)
	if err == nil {
		return assessment, SourceLLM
	}

	telemetry.LLMFallbacksTotal.WithLabelValues("classify").Inc()
	s.log.Warn().Err(err).Msg("LLM urgency classification failed, using heuristic engine")
	return HeuristicAssess(in), SourceHeuristic
}

func (s *Service) wrap(b *patient.Bundle, assessment *UrgencyAssessment, source string) *Result {
	return &Result{
		Assessment:   assessment,
		Source:       source,
		LevelLabel:   assessment.Level.Label(),
		LevelDetail:  assessment.Level.Description(),
		ReportPeriod: ReportPeriod(b.Physio),
		TargetStatus: BuildMonitoringSnapshot(b.Physio).TargetStatus(),
	}
}

// AssessAndStore runs the pipeline and, when a repository is configured,
// persists the verdict for the clinician-facing audit trail. Persistence
// failures are logged but never block the assessment from reaching the
// caller.
func (s *Service) AssessAndStore(ctx context.Context, b *patient.Bundle) (*Result, *AssessmentRecord) {
	result := s.Assess(ctx, b)

	record := &AssessmentRecord{
		PatientID:         b.Patient.ID,
		UrgencyAssessment: *result.Assessment,
		Source:            result.Source,
	}
	if s.repo != nil {
		if err := s.repo.Create(ctx, record); err != nil {
			s.log.Error().Err(err).Str("patient_id", b.Patient.ID.String()).Msg("failed to persist assessment")
		}
	}
	return result, record
}

// DefaultAssessment is the fixed verdict surfaced when automated evaluation
// fails entirely. It must never read as a clean bill of health: the level is
// attention and doctor intervention is always flagged.
func DefaultAssessment(reason string) *UrgencyAssessment {
	a := &UrgencyAssessment{
		Level:                    LevelAttention,
		RiskScore:                50,
		Reasoning:                "Automated evaluation could not be completed; a physician must review this case manually. " + reason,
		KeyConcerns:              []string{"automated evaluation failed", "manual physician review required"},
		DoctorInterventionNeeded: true,
		SuggestedAction:          "Have a physician review the patient's situation manually",
		FollowUpDays:             7,
		VerificationPassed:       false,
		VerificationNotes:        "system failure, default assessment in effect",
		TaskAssessment:           []TaskStatusRecord{},
	}
	a.Normalize()
	return a
}
