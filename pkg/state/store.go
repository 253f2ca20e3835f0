package state

import (
	"time"

	"github.com/google/uuid"
)

// DeletePolicy define o que acontece ao remover um nó com filhos.
type DeletePolicy string

const (
	// RefuseDelete recusa a remoção com ConflictError enquanto houver filhos.
	RefuseDelete DeletePolicy = "refuse"
	// CascadeDelete remove o nó e todos os descendentes.
	CascadeDelete DeletePolicy = "cascade"
)

type Options struct {
	HierarchyDelete DeletePolicy
	// TranslationStep é o tempo para um job avançar um estágio sozinho. Zero desliga o avanço automático.
	TranslationStep time.Duration
	SeedDefaults    bool
	Clock           func() time.Time
	NewID           func() string
}

func (o Options) withDefaults() Options {
	if o.HierarchyDelete == "" {
		o.HierarchyDelete = RefuseDelete
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
	return o
}

// Store agrupa os módulos de estado. Cada módulo tem seu próprio lock;
// só hierarquia e issues seguram dois locks juntos, sempre na ordem hierarquia -> issues.
type Store struct {
	OSS          *OSS
	Hierarchy    *Hierarchy
	Translations *Translations
	Issues       *Issues
	Webhooks     *Webhooks

	opts Options
}

func NewStore(opts Options) *Store {
	opts = opts.withDefaults()

	hierarchy := newHierarchy(opts)
	s := &Store{
		OSS:          newOSS(opts),
		Hierarchy:    hierarchy,
		Translations: newTranslations(opts),
		Issues:       newIssues(opts, hierarchy),
		Webhooks:     newWebhooks(opts),
		opts:         opts,
	}
	hierarchy.issues = s.Issues
	if opts.SeedDefaults {
		s.Hierarchy.seed()
	}
	return s
}

// Reset limpa todos os módulos e reaplica os dados iniciais.
func (s *Store) Reset() {
	s.OSS.reset()
	s.Hierarchy.reset()
	s.Translations.reset()
	s.Issues.reset()
	s.Webhooks.reset()
	if s.opts.SeedDefaults {
		s.Hierarchy.seed()
	}
}
