package state

import (
	"sync"
	"testing"

	"github.com/raywall/spec-emulator/pkg/faults"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestIssues_RequireProject(t *testing.T) {
	s := newTestStore(Options{NewID: counterIDs()})

	_, err := s.Issues.Create("proj-1", Issue{Title: "Vazamento"})
	require.Error(t, err)
	assert.True(t, faults.IsCategory(err, faults.ReferentialError))

	_, err = s.Hierarchy.Create(KindHub, "", Node{ID: "b.hub", Name: "Hub"})
	require.NoError(t, err)
	_, err = s.Hierarchy.Create(KindProject, "b.hub", Node{ID: "b.proj-1", Name: "Obra"})
	require.NoError(t, err)

	issue, err := s.Issues.Create("proj-1", Issue{Title: "Vazamento"})
	require.NoError(t, err)
	assert.Equal(t, "open", issue.Status)
	assert.Equal(t, "proj-1", issue.ProjectID)

	// id com prefixo b. resolve para o mesmo projeto
	got, err := s.Issues.Get("b.proj-1", issue.ID)
	require.NoError(t, err)
	assert.Equal(t, "Vazamento", got.Title)
}

func TestIssues_ValidationListUpdateDelete(t *testing.T) {
	s := newTestStore(Options{SeedDefaults: true})
	project := DefaultProjectID

	_, err := s.Issues.Create(project, Issue{Title: " "})
	assert.True(t, faults.IsCategory(err, faults.ValidationError))
	_, err = s.Issues.Create(project, Issue{Title: "x", Status: "whatever"})
	assert.True(t, faults.IsCategory(err, faults.ValidationError))

	a, err := s.Issues.Create(project, Issue{Title: "A"})
	require.NoError(t, err)
	_, err = s.Issues.Create(project, Issue{Title: "B", Status: "draft"})
	require.NoError(t, err)

	all, err := s.Issues.List(project, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "A", all[0].Title)

	drafts, err := s.Issues.List(project, "draft")
	require.NoError(t, err)
	assert.Len(t, drafts, 1)

	updated, err := s.Issues.Update(project, a.ID, IssuePatch{Status: strPtr("closed"), AssignedTo: strPtr("ana")})
	require.NoError(t, err)
	assert.Equal(t, "closed", updated.Status)
	assert.Equal(t, "ana", updated.AssignedTo)
	assert.Equal(t, "A", updated.Title)

	_, err = s.Issues.Update(project, a.ID, IssuePatch{Status: strPtr("bad")})
	assert.True(t, faults.IsCategory(err, faults.ValidationError))
	_, err = s.Issues.Update(project, "nope", IssuePatch{})
	assert.True(t, faults.IsCategory(err, faults.NotFoundError))

	require.NoError(t, s.Issues.Delete(project, a.ID))
	assert.True(t, faults.IsCategory(s.Issues.Delete(project, a.ID), faults.NotFoundError))

	_, err = s.Issues.List("b.unknown", "")
	assert.True(t, faults.IsCategory(err, faults.NotFoundError))
}

// Criação de issues concorrente com remoção de projetos não pode travar.
func TestIssues_ConcurrentWithHierarchy(t *testing.T) {
	s := newTestStore(Options{SeedDefaults: true, HierarchyDelete: CascadeDelete})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = s.Issues.Create(DefaultProjectID, Issue{Title: "t"})
		}()
		go func() {
			defer wg.Done()
			_, _ = s.Hierarchy.List(KindProject), s.Hierarchy.Exists(KindHub, DefaultHubID)
		}()
	}
	wg.Wait()

	issues, err := s.Issues.List(DefaultProjectID, "")
	require.NoError(t, err)
	assert.Len(t, issues, 20)
}

func TestIssues_ProjectDeletePolicy(t *testing.T) {
	setup := func(policy DeletePolicy) (*Store, Issue) {
		s := newTestStore(Options{HierarchyDelete: policy, NewID: counterIDs()})
		_, err := s.Hierarchy.Create(KindHub, "", Node{ID: "b.hub", Name: "Hub"})
		require.NoError(t, err)
		_, err = s.Hierarchy.Create(KindProject, "b.hub", Node{ID: "b.p1", Name: "Obra"})
		require.NoError(t, err)
		issue, err := s.Issues.Create("b.p1", Issue{Title: "Vazamento"})
		require.NoError(t, err)
		return s, issue
	}

	t.Run("refuse mantém projeto e issues", func(t *testing.T) {
		s, issue := setup(RefuseDelete)

		err := s.Hierarchy.Delete(KindProject, "b.p1")
		require.Error(t, err)
		assert.True(t, faults.IsCategory(err, faults.ConflictError))
		assert.True(t, s.Hierarchy.Exists(KindProject, "b.p1"))

		require.NoError(t, s.Issues.Delete("p1", issue.ID))
		require.NoError(t, s.Hierarchy.Delete(KindProject, "b.p1"))
	})

	t.Run("cascade remove as issues do projeto", func(t *testing.T) {
		s, issue := setup(CascadeDelete)

		require.NoError(t, s.Hierarchy.Delete(KindProject, "b.p1"))
		_, err := s.Hierarchy.Create(KindProject, "b.hub", Node{ID: "b.p1", Name: "Obra de novo"})
		require.NoError(t, err)

		_, err = s.Issues.Get("p1", issue.ID)
		assert.True(t, faults.IsCategory(err, faults.NotFoundError))
		all, err := s.Issues.List("p1", "")
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("cascade a partir do hub", func(t *testing.T) {
		s, _ := setup(CascadeDelete)

		require.NoError(t, s.Hierarchy.Delete(KindHub, "b.hub"))
		assert.Zero(t, s.Issues.countProject("b.p1"))
	})
}
