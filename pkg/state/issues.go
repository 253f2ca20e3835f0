package state

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/raywall/spec-emulator/pkg/faults"
)

var issueStatuses = map[string]bool{
	"draft": true, "open": true, "pending": true, "in_progress": true, "completed": true,
	"in_review": true, "not_approved": true, "in_dispute": true, "closed": true,
}

type Issue struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"containerId"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	AssignedTo  string    `json:"assignedTo,omitempty"`
	DueDate     string    `json:"dueDate,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// IssuePatch contém apenas os campos enviados numa atualização parcial.
type IssuePatch struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
	AssignedTo  *string `json:"assignedTo"`
	DueDate     *string `json:"dueDate"`
}

// Issues guarda issues por projeto. A existência do projeto é checada na hierarquia
// com o lock de leitura dela adquirido antes do lock de issues.
type Issues struct {
	mu        sync.RWMutex
	byProject map[string]*Collection[Issue]
	hierarchy *Hierarchy
	now       func() time.Time
	newID     func() string
}

func newIssues(opts Options, hierarchy *Hierarchy) *Issues {
	i := &Issues{hierarchy: hierarchy, now: opts.Clock, newID: opts.NewID}
	i.reset()
	return i
}

func (i *Issues) reset() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.byProject = make(map[string]*Collection[Issue])
}

// projectKey aceita o id com ou sem o prefixo "b." usado pela API de dados.
// Deve ser chamado com o lock de leitura da hierarquia.
func (i *Issues) projectKeyLocked(projectID string) (string, bool) {
	candidates := []string{projectID}
	if strings.HasPrefix(projectID, "b.") {
		candidates = append(candidates, strings.TrimPrefix(projectID, "b."))
	} else {
		candidates = append(candidates, "b."+projectID)
	}
	for _, id := range candidates {
		if i.hierarchy.existsLocked(KindProject, id) {
			return strings.TrimPrefix(id, "b."), true
		}
	}
	return "", false
}

// Create exige que o projeto exista (ReferentialError caso contrário).
func (i *Issues) Create(projectID string, issue Issue) (Issue, error) {
	if strings.TrimSpace(issue.Title) == "" {
		return Issue{}, faults.Validation("title é obrigatório")
	}
	if issue.Status == "" {
		issue.Status = "open"
	}
	if !issueStatuses[issue.Status] {
		return Issue{}, faults.Validation(fmt.Sprintf("status de issue inválido '%s'", issue.Status))
	}

	i.hierarchy.mu.RLock()
	defer i.hierarchy.mu.RUnlock()

	key, ok := i.projectKeyLocked(projectID)
	if !ok {
		return Issue{}, faults.Referential(fmt.Sprintf("projeto '%s' não existe", projectID))
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if issue.ID == "" {
		issue.ID = i.newID()
	}
	now := i.now()
	issue.ProjectID = key
	issue.CreatedAt, issue.UpdatedAt = now, now

	col, ok := i.byProject[key]
	if !ok {
		col = NewCollection[Issue]()
		i.byProject[key] = col
	}
	if !col.Insert(issue.ID, issue) {
		return Issue{}, faults.Conflict(fmt.Sprintf("issue '%s' já existe", issue.ID))
	}
	return issue, nil
}

func (i *Issues) Get(projectID, issueID string) (Issue, error) {
	i.hierarchy.mu.RLock()
	key, ok := i.projectKeyLocked(projectID)
	i.hierarchy.mu.RUnlock()
	if !ok {
		return Issue{}, faults.NotFound(fmt.Sprintf("projeto '%s' não encontrado", projectID))
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	if col, ok := i.byProject[key]; ok {
		if issue, ok := col.Get(issueID); ok {
			return issue, nil
		}
	}
	return Issue{}, faults.NotFound(fmt.Sprintf("issue '%s' não encontrada", issueID))
}

// List devolve as issues do projeto em ordem de criação, opcionalmente filtradas por status.
func (i *Issues) List(projectID, status string) ([]Issue, error) {
	i.hierarchy.mu.RLock()
	key, ok := i.projectKeyLocked(projectID)
	i.hierarchy.mu.RUnlock()
	if !ok {
		return nil, faults.NotFound(fmt.Sprintf("projeto '%s' não encontrado", projectID))
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	out := []Issue{}
	col, ok := i.byProject[key]
	if !ok {
		return out, nil
	}
	for _, issue := range col.Values() {
		if status == "" || issue.Status == status {
			out = append(out, issue)
		}
	}
	return out, nil
}

// Update aplica uma atualização parcial.
func (i *Issues) Update(projectID, issueID string, patch IssuePatch) (Issue, error) {
	if patch.Status != nil && !issueStatuses[*patch.Status] {
		return Issue{}, faults.Validation(fmt.Sprintf("status de issue inválido '%s'", *patch.Status))
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return Issue{}, faults.Validation("title não pode ser vazio")
	}

	i.hierarchy.mu.RLock()
	key, ok := i.projectKeyLocked(projectID)
	i.hierarchy.mu.RUnlock()
	if !ok {
		return Issue{}, faults.NotFound(fmt.Sprintf("projeto '%s' não encontrado", projectID))
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	col, ok := i.byProject[key]
	if !ok {
		return Issue{}, faults.NotFound(fmt.Sprintf("issue '%s' não encontrada", issueID))
	}
	issue, ok := col.Get(issueID)
	if !ok {
		return Issue{}, faults.NotFound(fmt.Sprintf("issue '%s' não encontrada", issueID))
	}

	if patch.Title != nil {
		issue.Title = *patch.Title
	}
	if patch.Description != nil {
		issue.Description = *patch.Description
	}
	if patch.Status != nil {
		issue.Status = *patch.Status
	}
	if patch.AssignedTo != nil {
		issue.AssignedTo = *patch.AssignedTo
	}
	if patch.DueDate != nil {
		issue.DueDate = *patch.DueDate
	}
	issue.UpdatedAt = i.now()
	col.Put(issueID, issue)
	return issue, nil
}

func (i *Issues) Delete(projectID, issueID string) error {
	i.hierarchy.mu.RLock()
	key, ok := i.projectKeyLocked(projectID)
	i.hierarchy.mu.RUnlock()
	if !ok {
		return faults.NotFound(fmt.Sprintf("projeto '%s' não encontrado", projectID))
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if col, ok := i.byProject[key]; ok && col.Delete(issueID) {
		return nil
	}
	return faults.NotFound(fmt.Sprintf("issue '%s' não encontrada", issueID))
}

// countProject e dropProject são chamados pela hierarquia com o lock dela já adquirido.
func (i *Issues) countProject(projectID string) int {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if col, ok := i.byProject[strings.TrimPrefix(projectID, "b.")]; ok {
		return len(col.Values())
	}
	return 0
}

func (i *Issues) dropProject(projectID string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.byProject, strings.TrimPrefix(projectID, "b."))
}
