package membership

import (
	"context"
	"errors"
	"sort"
	"testing"
)

func mustJoin(t *testing.T, repo *InMemoryRepository, groupID, subjectID string, role Role) {
	t.Helper()
	if err := repo.Upsert(context.Background(), Fact{
		GroupID: groupID, SubjectID: subjectID, Role: role,
	}); err != nil {
		t.Fatalf("upsert %s/%s: %v", groupID, subjectID, err)
	}
}

func TestUpsertReplacesRole(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	mustJoin(t, repo, "fam", "dad", RoleMember)
	mustJoin(t, repo, "fam", "dad", RoleAdmin)

	role, err := repo.RoleIn(ctx, "fam", "dad")
	if err != nil {
		t.Fatalf("role: %v", err)
	}
	if role != RoleAdmin {
		t.Errorf("role = %s, want admin after re-upsert", role)
	}

	members, err := repo.MembersOf(ctx, "fam")
	if err != nil {
		t.Fatalf("members: %v", err)
	}
	if len(members) != 1 {
		t.Errorf("members = %d, want 1 (no duplicate facts)", len(members))
	}
}

func TestRemoveAndRoleIn(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	mustJoin(t, repo, "fam", "kid", RoleMember)
	if err := repo.Remove(ctx, "fam", "kid"); err != nil {
		t.Fatalf("remove: %v", err)
	}

	if _, err := repo.RoleIn(ctx, "fam", "kid"); !errors.Is(err, ErrFactNotFound) {
		t.Errorf("RoleIn after remove = %v, want ErrFactNotFound", err)
	}
	if err := repo.Remove(ctx, "fam", "kid"); !errors.Is(err, ErrFactNotFound) {
		t.Errorf("second remove = %v, want ErrFactNotFound", err)
	}
}

func TestSharesGroup(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	mustJoin(t, repo, "fam", "mom", RoleMember)
	mustJoin(t, repo, "fam", "kid", RoleMember)
	mustJoin(t, repo, "hiking", "mom", RoleMember)
	mustJoin(t, repo, "hiking", "friend", RoleMember)

	ok, err := repo.SharesGroup(ctx, "kid", "mom")
	if err != nil || !ok {
		t.Errorf("SharesGroup(kid, mom) = %v, %v; want true", ok, err)
	}
	ok, err = repo.SharesGroup(ctx, "kid", "friend")
	if err != nil || ok {
		t.Errorf("SharesGroup(kid, friend) = %v, %v; want false", ok, err)
	}
}

func TestIsAdminOfSubject(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	mustJoin(t, repo, "fam", "dad", RoleAdmin)
	mustJoin(t, repo, "fam", "kid", RoleMember)
	mustJoin(t, repo, "fam", "nanny", RoleSupervisor)

	ok, err := repo.IsAdminOfSubject(ctx, "dad", "kid")
	if err != nil || !ok {
		t.Errorf("IsAdminOfSubject(dad, kid) = %v, %v; want true", ok, err)
	}
	// Supervisors and plain members carry no admin privilege.
	for _, observer := range []string{"nanny", "kid"} {
		ok, err = repo.IsAdminOfSubject(ctx, observer, "dad")
		if err != nil || ok {
			t.Errorf("IsAdminOfSubject(%s, dad) = %v, %v; want false", observer, ok, err)
		}
	}
}

func TestDistinctSubjects(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	mustJoin(t, repo, "fam", "mom", RoleMember)
	mustJoin(t, repo, "fam", "kid", RoleMember)
	mustJoin(t, repo, "hiking", "mom", RoleMember)

	got, err := repo.DistinctSubjects(ctx)
	if err != nil {
		t.Fatalf("distinct: %v", err)
	}
	sort.Strings(got)
	want := []string{"kid", "mom"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("subjects = %v, want %v", got, want)
	}
}
