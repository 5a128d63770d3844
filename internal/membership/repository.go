// Package membership provides models and repositories for group membership
// facts: which subjects belong to which groups, and in what role.
package membership

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// Common errors for membership operations.
var (
	ErrFactNotFound = errors.New("membership fact not found")
)

// Role is a subject's role inside one group.
type Role string

// Group roles.
const (
	RoleAdmin      Role = "admin"
	RoleSupervisor Role = "supervisor"
	RoleMember     Role = "member"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleSupervisor || r == RoleMember
}

// Fact records one subject's membership in one group. A subject may belong
// to several groups; (GroupID, SubjectID) is unique.
type Fact struct {
	GroupID   string    `json:"group_id"`
	SubjectID string    `json:"subject_id"`
	Role      Role      `json:"role"`
	Since     time.Time `json:"since"`
}

// Repository defines the interface for membership fact operations.
type Repository interface {
	// Upsert records a membership fact, replacing the role if the pair
	// already exists. Idempotent per (group, subject).
	Upsert(ctx context.Context, fact Fact) error

	// Remove deletes a membership fact.
	Remove(ctx context.Context, groupID, subjectID string) error

	// GroupsFor returns the ids of every group the subject belongs to.
	GroupsFor(ctx context.Context, subjectID string) ([]string, error)

	// MembersOf returns the facts for every member of a group.
	MembersOf(ctx context.Context, groupID string) ([]Fact, error)

	// RoleIn returns the subject's role in a group, or ErrFactNotFound.
	RoleIn(ctx context.Context, groupID, subjectID string) (Role, error)

	// IsAdminOfSubject reports whether observer is an admin of any group
	// that also contains subject.
	IsAdminOfSubject(ctx context.Context, observerID, subjectID string) (bool, error)

	// SharesGroup reports whether two subjects have at least one group in
	// common.
	SharesGroup(ctx context.Context, a, b string) (bool, error)

	// DistinctSubjects returns every subject id that appears in any group.
	DistinctSubjects(ctx context.Context) ([]string, error)
}

// InMemoryRepository is an in-memory implementation of Repository.
// Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu    sync.RWMutex
	facts map[string]map[string]Fact // groupID -> subjectID -> Fact
}

// NewInMemoryRepository creates a new in-memory membership repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{facts: make(map[string]map[string]Fact)}
}

// Upsert records a membership fact.
func (r *InMemoryRepository) Upsert(ctx context.Context, fact Fact) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	group, ok := r.facts[fact.GroupID]
	if !ok {
		group = make(map[string]Fact)
		r.facts[fact.GroupID] = group
	}
	if existing, ok := group[fact.SubjectID]; ok {
		// Keep the original join time on re-application.
		fact.Since = existing.Since
	} else if fact.Since.IsZero() {
		fact.Since = time.Now()
	}
	group[fact.SubjectID] = fact
	return nil
}

// Remove deletes a membership fact.
func (r *InMemoryRepository) Remove(ctx context.Context, groupID, subjectID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	group, ok := r.facts[groupID]
	if !ok {
		return ErrFactNotFound
	}
	if _, ok := group[subjectID]; !ok {
		return ErrFactNotFound
	}
	delete(group, subjectID)
	if len(group) == 0 {
		delete(r.facts, groupID)
	}
	return nil
}

// GroupsFor returns the ids of every group the subject belongs to.
func (r *InMemoryRepository) GroupsFor(ctx context.Context, subjectID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []string
	for groupID, group := range r.facts {
		if _, ok := group[subjectID]; ok {
			out = append(out, groupID)
		}
	}
	sort.Strings(out)
	return out, nil
}

// MembersOf returns the facts for every member of a group.
func (r *InMemoryRepository) MembersOf(ctx context.Context, groupID string) ([]Fact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	group := r.facts[groupID]
	out := make([]Fact, 0, len(group))
	for _, fact := range group {
		out = append(out, fact)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubjectID < out[j].SubjectID })
	return out, nil
}

// RoleIn returns the subject's role in a group.
func (r *InMemoryRepository) RoleIn(ctx context.Context, groupID, subjectID string) (Role, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if fact, ok := r.facts[groupID][subjectID]; ok {
		return fact.Role, nil
	}
	return "", ErrFactNotFound
}

// IsAdminOfSubject reports whether observer administers a group containing subject.
func (r *InMemoryRepository) IsAdminOfSubject(ctx context.Context, observerID, subjectID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, group := range r.facts {
		obs, okObs := group[observerID]
		_, okSub := group[subjectID]
		if okObs && okSub && obs.Role == RoleAdmin {
			return true, nil
		}
	}
	return false, nil
}

// SharesGroup reports whether two subjects have a group in common.
func (r *InMemoryRepository) SharesGroup(ctx context.Context, a, b string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, group := range r.facts {
		if _, ok := group[a]; !ok {
			continue
		}
		if _, ok := group[b]; ok {
			return true, nil
		}
	}
	return false, nil
}

// DistinctSubjects returns every subject id that appears in any group.
func (r *InMemoryRepository) DistinctSubjects(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	for _, group := range r.facts {
		for subjectID := range group {
			seen[subjectID] = true
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}
