package triage

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/caresight/caresight/internal/domain/patient"
	"github.com/caresight/caresight/internal/platform/llm"
)

// Fixed per-bucket confidences for heuristic classification. These are
// assigned by bucket, not derived from model probabilities.
const (
	confidenceNotCompleted = 0.75
	confidencePartial      = 0.65
	confidenceCompleted    = 0.6
	confidenceNoRecord     = 0.4
)

// statusBuckets normalize free-form completion-status text onto the four
// canonical states by keyword membership. Ordering matters: negated
// completions ("未完成") must hit the not-completed bucket before the
// "完成" keyword of the completed bucket can match. The tables are heuristic
// proxies for semantic understanding; phrasing like "没有漏服" still matches
// "漏" and misclassifies — a known limit of the keyword contract.
var statusBuckets = []struct {
	status   CompletionStatus
	keywords []string
}{
	{StatusNotCompleted, []string{"not-completed", "not_completed", "未完成", "未执行", "未做到", "没有执行", "漏", "拒绝", "放弃", "忘记"}},
	{StatusPartial, []string{"partial", "部分", "偶尔", "间断", "波动", "不太稳定", "有时"}},
	{StatusCompleted, []string{"completed", "已完成", "完成", "坚持", "按时", "做到", "遵从"}},
	{StatusNoRecord, []string{"no-record", "no_record", "缺少", "未知", "不清楚", "未提及", "无记录", "无信息"}},
}

// NormalizeStatus maps a raw status string onto a canonical completion
// state. Unrecognized text resolves to no-record.
func NormalizeStatus(raw string) CompletionStatus {
	text := strings.ToLower(strings.TrimSpace(raw))
	if text == "" {
		return StatusNoRecord
	}
	for _, bucket := range statusBuckets {
		for _, kw := range bucket.keywords {
			if strings.Contains(text, kw) {
				return bucket.status
			}
		}
	}
	return StatusNoRecord
}

// TaskProgressAnalyzer infers per-task completion status from follow-up
// dialogues. It tries an LLM semantic pass first and degrades to a
// deterministic keyword heuristic on any failure; it never returns an error
// to its caller.
type TaskProgressAnalyzer struct {
	client llm.ChatClient
	log    zerolog.Logger
}

// NewTaskProgressAnalyzer builds an analyzer around the given chat client.
// A nil client skips straight to the keyword heuristic.
func NewTaskProgressAnalyzer(client llm.ChatClient, logger zerolog.Logger) *TaskProgressAnalyzer {
	return &TaskProgressAnalyzer{client: client, log: logger}
}

// Analyze returns one status record per declared task, in task order.
func (a *TaskProgressAnalyzer) Analyze(ctx context.Context, b *patient.Bundle) []TaskStatusRecord {
	if len(b.Tasks) == 0 {
		return []TaskStatusRecord{}
	}

	if a.client != nil {
		parsed, err := a.analyzeLLM(ctx, b)
		if err == nil {
			return mergeWithTasks(b.Tasks, parsed)
		}
		a.log.Warn().Err(err).Msg("task progress LLM analysis failed, using keyword heuristic")
	}

	return mergeWithTasks(b.Tasks, heuristicProgress(b.Tasks, b.PatientMessages()))
}

// rawTaskRecord is the loosely-shaped per-task object the model returns.
type rawTaskRecord struct {
	Task             string          `json:"task"`
	TaskName         string          `json:"task_name"`
	CompletionStatus string          `json:"completion_status"`
	Status           string          `json:"status"`
	Confidence       json.RawMessage `json:"confidence"`
	Evidence         string          `json:"evidence"`
	Notes            string          `json:"notes"`
}

// taskListEnvelope covers responses that wrap the array in an object.
type taskListEnvelope struct {
	Tasks          []rawTaskRecord `json:"tasks"`
	TaskAssessment []rawTaskRecord `json:"task_assessment"`
	Items          []rawTaskRecord `json:"items"`
}

func (a *TaskProgressAnalyzer) analyzeLLM(ctx context.Context, b *patient.Bundle) ([]TaskStatusRecord, error) {
	prompt, err := formatTaskProgressPrompt(b)
	if err != nil {
		return nil, fmt.Errorf("build task progress prompt: %w", err)
	}

	response, err := a.client.Complete(ctx, prompt, llm.Options{Temperature: 0.35, MaxTokens: 1200})
	if err != nil {
		return nil, fmt.Errorf("task progress completion: %w", err)
	}

	return parseTaskProgressResponse(response)
}

func parseTaskProgressResponse(response string) ([]TaskStatusRecord, error) {
	var raw []rawTaskRecord
	if err := llm.Decode(response, &raw); err != nil {
		var envelope taskListEnvelope
		if envErr := llm.Decode(response, &envelope); envErr != nil {
			return nil, err
		}
		switch {
		case len(envelope.Tasks) > 0:
			raw = envelope.Tasks
		case len(envelope.TaskAssessment) > 0:
			raw = envelope.TaskAssessment
		case len(envelope.Items) > 0:
			raw = envelope.Items
		default:
			return nil, fmt.Errorf("task progress response contained no task array")
		}
	}

	out := make([]TaskStatusRecord, 0, len(raw))
	for _, item := range raw {
		name := strings.TrimSpace(item.Task)
		if name == "" {
			name = strings.TrimSpace(item.TaskName)
		}
		if name == "" {
			continue
		}
		statusText := item.CompletionStatus
		if statusText == "" {
			statusText = item.Status
		}
		out = append(out, TaskStatusRecord{
			Task:             name,
			CompletionStatus: NormalizeStatus(statusText),
			Confidence:       clampConfidence(item.Confidence, 0.6),
			Evidence:         strings.TrimSpace(item.Evidence),
			Notes:            strings.TrimSpace(item.Notes),
		})
	}
	return out, nil
}

// clampConfidence coerces a raw confidence value into [0,1], falling back to
// def when absent or unparseable.
func clampConfidence(raw json.RawMessage, def float64) float64 {
	var v float64
	if raw == nil || json.Unmarshal(raw, &v) != nil {
		// Some models quote the number.
		var s string
		if raw == nil || json.Unmarshal(raw, &s) != nil {
			return def
		}
		if _, err := fmt.Sscanf(s, "%f", &v); err != nil {
			return def
		}
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

var whitespaceRE = regexp.MustCompile(`\s+`)

func normalizeTaskName(name string) string {
	return whitespaceRE.ReplaceAllString(strings.ToLower(name), "")
}

// mergeWithTasks aligns analysis results with the declared task list by
// normalized-name match. Tasks without a matching record get a synthesized
// no-record entry.
func mergeWithTasks(tasks []patient.ComplianceTask, parsed []TaskStatusRecord) []TaskStatusRecord {
	byName := make(map[string]TaskStatusRecord, len(parsed))
	for _, rec := range parsed {
		if rec.Task != "" {
			byName[normalizeTaskName(rec.Task)] = rec
		}
	}

	merged := make([]TaskStatusRecord, 0, len(tasks))
	for _, task := range tasks {
		name := task.Task
		if name == "" {
			name = "(unnamed task)"
		}
		rec, ok := byName[normalizeTaskName(name)]
		if !ok {
			merged = append(merged, TaskStatusRecord{
				Task:             name,
				CompletionStatus: StatusNoRecord,
				Confidence:       confidenceNoRecord,
				Notes:            "recent dialogue does not mention this task",
			})
			continue
		}
		rec.Task = name
		merged = append(merged, rec)
	}
	return merged
}

// Keyword buckets for the dialogue fallback. Hard negatives force
// not-completed, soft negatives force partial, positives force completed.
var (
	hardNegativeKeywords = []string{"从不", "一直没", "拒绝", "不去", "不做", "不想", "没去", "没做", "未去", "never", "refuse", "didn't go"}
	softNegativeKeywords = []string{"偶尔", "有时候", "有时", "忙", "忘", "断", "麻烦", "担心", "害怕", "怕", "occasionally", "forgot", "busy"}
	positiveKeywords     = []string{"按时", "坚持", "每天", "都会", "照着", "有做", "做到", "安排", "完成", "on time", "every day", "stuck to it"}
)

// inferStatusFromMessage classifies a single patient message. Empty string
// means the message carries no signal.
func inferStatusFromMessage(message string) CompletionStatus {
	text := strings.TrimSpace(message)
	if text == "" {
		return ""
	}
	lowered := strings.ToLower(text)

	for _, kw := range hardNegativeKeywords {
		if strings.Contains(lowered, kw) {
			return StatusNotCompleted
		}
	}
	for _, kw := range softNegativeKeywords {
		if strings.Contains(lowered, kw) {
			return StatusPartial
		}
	}
	for _, kw := range positiveKeywords {
		if strings.Contains(lowered, kw) {
			return StatusCompleted
		}
	}
	if strings.Contains(text, "没") || strings.Contains(text, "不") {
		return StatusPartial
	}
	if strings.Contains(text, "试着") || strings.Contains(text, "努力") {
		return StatusPartial
	}
	return ""
}

var taskTokenRE = regexp.MustCompile(`[\x{4e00}-\x{9fff}]{2,}|[a-zA-Z]{3,}`)

// taskKeywords tokenizes a task name for overlap matching: CJK runs and
// their bigrams, plus latin words.
func taskKeywords(name string) []string {
	tokens := taskTokenRE.FindAllString(name, -1)
	if len(tokens) == 0 {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			return nil
		}
		return []string{trimmed}
	}

	var keys []string
	for _, tok := range tokens {
		keys = append(keys, tok)
		runes := []rune(tok)
		if runes[0] >= 0x4e00 {
			for i := 0; i+2 <= len(runes); i++ {
				keys = append(keys, string(runes[i:i+2]))
			}
		}
	}
	return keys
}

// messageMentionsTask reports keyword overlap between a patient message and
// a task's name tokens. When no token matches it falls back to shared CJK
// characters so colloquial paraphrases ("吃药" for "服药") still count.
func messageMentionsTask(message string, keywords []string, taskName string) bool {
	if len(keywords) == 0 {
		return true
	}
	lowered := strings.ToLower(message)
	for _, kw := range keywords {
		if strings.Contains(lowered, strings.ToLower(kw)) {
			return true
		}
	}
	for _, r := range taskName {
		if r >= 0x4e00 && r <= 0x9fff && strings.ContainsRune(message, r) {
			return true
		}
	}
	return false
}

// heuristicProgress scans patient-authored messages for keyword overlap with
// each task and classifies via the keyword buckets. A hard negative is
// terminal for the task; a soft negative outranks a positive seen earlier.
func heuristicProgress(tasks []patient.ComplianceTask, messages []string) []TaskStatusRecord {
	out := make([]TaskStatusRecord, 0, len(tasks))
	for _, task := range tasks {
		name := task.Task
		if name == "" {
			name = "(unnamed task)"
		}
		keywords := taskKeywords(name)

		status := StatusNoRecord
		evidence := ""
		for _, msg := range messages {
			if !messageMentionsTask(msg, keywords, name) {
				continue
			}
			detected := inferStatusFromMessage(msg)
			if detected == "" {
				continue
			}
			evidence = msg
			if detected == StatusNotCompleted {
				status = StatusNotCompleted
				break
			}
			if detected == StatusPartial {
				status = StatusPartial
			} else if detected == StatusCompleted && status == StatusNoRecord {
				status = StatusCompleted
			}
		}

		rec := TaskStatusRecord{Task: name, CompletionStatus: status, Evidence: evidence}
		switch status {
		case StatusNotCompleted:
			rec.Confidence = confidenceNotCompleted
			rec.Notes = "patient explicitly reported not following through; needs focused intervention"
		case StatusPartial:
			rec.Confidence = confidencePartial
			rec.Notes = "execution is unstable; reinforce reminders and support"
		case StatusCompleted:
			rec.Confidence = confidenceCompleted
			rec.Notes = "patient reports following the plan"
		default:
			rec.Confidence = confidenceNoRecord
			rec.Notes = "recent dialogue does not cover this task"
		}
		out = append(out, rec)
	}
	return out
}
