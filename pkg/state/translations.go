package state

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/raywall/spec-emulator/pkg/faults"
)

type TranslationStatus string

const (
	StatusPending    TranslationStatus = "pending"
	StatusInProgress TranslationStatus = "inprogress"
	StatusSuccess    TranslationStatus = "success"
	StatusFailed     TranslationStatus = "failed"
)

// Estágios: 0 pending, 1..4 inprogress (25%..100%), 5 success.
const (
	stagePending = 0
	stageSuccess = 5
)

// TranslationJob é a visão de um job de tradução no momento da leitura.
type TranslationJob struct {
	URN        string            `json:"urn"`
	Status     TranslationStatus `json:"status"`
	Progress   string            `json:"progress"`
	OutputType string            `json:"outputType"`
	Region     string            `json:"region"`
	CreatedAt  time.Time         `json:"createdAt"`
}

// Terminal informa se o job não pode mais mudar.
func (j TranslationJob) Terminal() bool {
	return j.Status == StatusSuccess || j.Status == StatusFailed
}

type translationRecord struct {
	urn        string
	outputType string
	region     string
	createdAt  time.Time
	// stage é o piso explícito; o estágio efetivo também considera o tempo decorrido.
	stage  int
	failed bool
	seq    int
}

// Translations guarda jobs de tradução. O status só avança:
// pending -> inprogress -> success, ou qualquer estágio não terminal -> failed.
type Translations struct {
	mu   sync.RWMutex
	jobs *Collection[*translationRecord]
	seq  int
	step time.Duration
	now  func() time.Time
}

func newTranslations(opts Options) *Translations {
	t := &Translations{step: opts.TranslationStep, now: opts.Clock}
	t.reset()
	return t
}

func (t *Translations) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.jobs = NewCollection[*translationRecord]()
	t.seq = 0
}

// Create registra o job em pending. URN existente é ConflictError, a menos que force seja true.
func (t *Translations) Create(urn, outputType, region string, force bool) (TranslationJob, error) {
	if urn == "" {
		return TranslationJob{}, faults.Validation("urn é obrigatório")
	}
	if outputType == "" {
		outputType = "svf2"
	}
	if region == "" {
		region = "US"
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.jobs.Has(urn) && !force {
		return TranslationJob{}, faults.Conflict(fmt.Sprintf("job de tradução para '%s' já existe", urn))
	}

	t.seq++
	rec := &translationRecord{
		urn:        urn,
		outputType: outputType,
		region:     region,
		createdAt:  t.now(),
		stage:      stagePending,
		seq:        t.seq,
	}
	t.jobs.Delete(urn)
	t.jobs.Insert(urn, rec)
	return t.viewLocked(rec), nil
}

// Get devolve o job com o estágio efetivo no instante da leitura.
func (t *Translations) Get(urn string) (TranslationJob, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rec, ok := t.jobs.Get(urn)
	if !ok {
		return TranslationJob{}, faults.NotFound(fmt.Sprintf("job de tradução '%s' não encontrado", urn))
	}
	return t.viewLocked(rec), nil
}

// List devolve os jobs ordenados por criação.
func (t *Translations) List() []TranslationJob {
	t.mu.RLock()
	defer t.mu.RUnlock()

	records := t.jobs.Values()
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].createdAt.Equal(records[j].createdAt) {
			return records[i].seq < records[j].seq
		}
		return records[i].createdAt.Before(records[j].createdAt)
	})
	out := make([]TranslationJob, 0, len(records))
	for _, rec := range records {
		out = append(out, t.viewLocked(rec))
	}
	return out
}

// Advance move o job um estágio adiante. Job terminal resulta em ConflictError.
func (t *Translations) Advance(urn string) (TranslationJob, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.jobs.Get(urn)
	if !ok {
		return TranslationJob{}, faults.NotFound(fmt.Sprintf("job de tradução '%s' não encontrado", urn))
	}
	current := t.effectiveLocked(rec)
	if rec.failed || current >= stageSuccess {
		return TranslationJob{}, faults.Conflict(fmt.Sprintf("job '%s' já está em estado terminal", urn))
	}
	rec.stage = current + 1
	return t.viewLocked(rec), nil
}

// SetStatus leva o job ao status informado. Retrocessos e saídas de estado terminal são ConflictError.
// progress ("25%", "50%"...) só é considerado para inprogress.
func (t *Translations) SetStatus(urn string, status TranslationStatus, progress string) (TranslationJob, error) {
	target, err := stageFor(status, progress)
	if err != nil {
		return TranslationJob{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.jobs.Get(urn)
	if !ok {
		return TranslationJob{}, faults.NotFound(fmt.Sprintf("job de tradução '%s' não encontrado", urn))
	}
	current := t.effectiveLocked(rec)
	view := t.viewLocked(rec)

	if view.Terminal() {
		if view.Status == status {
			return view, nil
		}
		return TranslationJob{}, faults.Conflict(fmt.Sprintf("job '%s' já está em '%s'", urn, view.Status))
	}

	if status == StatusFailed {
		rec.stage = current
		rec.failed = true
		return t.viewLocked(rec), nil
	}
	if target < current {
		return TranslationJob{}, faults.Conflict(fmt.Sprintf("transição inválida de '%s (%s)' para '%s'", view.Status, view.Progress, status))
	}
	rec.stage = target
	return t.viewLocked(rec), nil
}

// Delete remove o job (equivale a apagar o manifest).
func (t *Translations) Delete(urn string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.jobs.Delete(urn) {
		return faults.NotFound(fmt.Sprintf("job de tradução '%s' não encontrado", urn))
	}
	return nil
}

func stageFor(status TranslationStatus, progress string) (int, error) {
	switch status {
	case StatusPending:
		return stagePending, nil
	case StatusInProgress:
		switch progress {
		case "", "25%":
			return 1, nil
		case "50%":
			return 2, nil
		case "75%":
			return 3, nil
		case "100%":
			return 4, nil
		default:
			return 0, faults.Validation(fmt.Sprintf("progresso inválido '%s'", progress))
		}
	case StatusSuccess:
		return stageSuccess, nil
	case StatusFailed:
		return -1, nil
	default:
		return 0, faults.Validation(fmt.Sprintf("status de tradução desconhecido '%s'", status))
	}
}

func (t *Translations) effectiveLocked(rec *translationRecord) int {
	stage := rec.stage
	if !rec.failed && t.step > 0 {
		elapsed := int(t.now().Sub(rec.createdAt) / t.step)
		if elapsed > stage {
			stage = elapsed
		}
	}
	if stage > stageSuccess {
		stage = stageSuccess
	}
	return stage
}

func (t *Translations) viewLocked(rec *translationRecord) TranslationJob {
	job := TranslationJob{
		URN:        rec.urn,
		OutputType: rec.outputType,
		Region:     rec.region,
		CreatedAt:  rec.createdAt,
	}
	stage := t.effectiveLocked(rec)
	switch {
	case rec.failed:
		job.Status, job.Progress = StatusFailed, "complete"
	case stage == stagePending:
		job.Status, job.Progress = StatusPending, "0%"
	case stage >= stageSuccess:
		job.Status, job.Progress = StatusSuccess, "complete"
	default:
		job.Status, job.Progress = StatusInProgress, fmt.Sprintf("%d%%", stage*25)
	}
	return job
}
