package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// JobID identifies a listing. The listings API emits numeric row IDs, but the
// ID is compared as text so string IDs from other sources work too.
type JobID string

// UnmarshalJSON accepts both JSON numbers and JSON strings.
func (id *JobID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = JobID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("job id: %w", err)
	}
	*id = JobID(n.String())
	return nil
}

// Job is a single internship posting as served by the listings API.
// Jobs are immutable once fetched.
type Job struct {
	ID          JobID  `json:"id"`
	JobTitle    string `json:"jobTitle"`
	CompanyName string `json:"companyName"`
	Location    string `json:"location"`
	Salary      string `json:"salary"`
	Duration    string `json:"duration"`
	JobType     string `json:"jobType"`
	JobCategory string `json:"jobCategory"`
	Description string `json:"description"`
	Email       string `json:"email,omitempty"`
}

// FavoriteJobRef is the minimal copy of a Job kept in a favorites list.
type FavoriteJobRef struct {
	ID          JobID  `json:"id"`
	JobTitle    string `json:"jobTitle"`
	CompanyName string `json:"companyName"`
	Location    string `json:"location"`
}

// Favorite returns the projection of the job stored in favorites lists.
func (j Job) Favorite() FavoriteJobRef {
	return FavoriteJobRef{
		ID:          j.ID,
		JobTitle:    j.JobTitle,
		CompanyName: j.CompanyName,
		Location:    j.Location,
	}
}

// FavoriteSet indexes favorites by job ID.
type FavoriteSet map[JobID]struct{}

// NewFavoriteSet builds a set from an ordered favorites list.
func NewFavoriteSet(refs []FavoriteJobRef) FavoriteSet {
	set := make(FavoriteSet, len(refs))
	for _, r := range refs {
		set[r.ID] = struct{}{}
	}
	return set
}

// Has reports whether id is in the set. A nil set contains nothing.
func (s FavoriteSet) Has(id JobID) bool {
	_, ok := s[id]
	return ok
}
