// Package catalog fetches internship listings from the remote listings API.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/msomdec/internsync/internal/domain"
)

const (
	// DefaultURL is the Sheety endpoint serving the internship sheet.
	DefaultURL = "https://api.sheety.co/6fd29e47dbc53b9a4eeb9bb859a7f01f/newInternshipJobsData/internshipJobsDataCsv"
	// EnvelopeKey is the field of the response envelope holding the rows.
	EnvelopeKey = "internshipJobsDataCsv"

	httpTimeout = 15 * time.Second
)

// NetworkError reports a non-success response from the listings API.
type NetworkError struct {
	Status int
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("Failed to fetch jobs: %d", e.Status)
}

// Loader fetches the whole catalog with a single GET.
type Loader struct {
	url    string
	client *http.Client
}

// NewLoader constructs a loader with its own HTTP client. An empty url
// selects DefaultURL.
func NewLoader(url string) *Loader {
	if url == "" {
		url = DefaultURL
	}
	return &Loader{
		url:    url,
		client: &http.Client{Timeout: httpTimeout},
	}
}

// listingRow mirrors one row of the sheet. Numeric and text cells are both
// accepted for the free-form columns.
type listingRow struct {
	ID          domain.JobID `json:"id"`
	JobTitle    text         `json:"jobTitle"`
	CompanyName text         `json:"companyName"`
	Location    text         `json:"location"`
	Salary      text         `json:"salary"`
	Duration    text         `json:"duration"`
	JobType     text         `json:"jobType"`
	JobCategory text         `json:"jobCategory"`
	Description text         `json:"description"`
	Email       text         `json:"email"`
}

// Load fetches and decodes every listing. There is no retry and no paging.
func (l *Loader) Load(ctx context.Context) ([]domain.Job, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http GET: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, &NetworkError{Status: resp.StatusCode}
	}

	var envelope map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode listings: %w", err)
	}

	raw, ok := envelope[EnvelopeKey]
	if !ok {
		return nil, fmt.Errorf("decode listings: missing %q", EnvelopeKey)
	}

	var rows []listingRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("decode listings: %w", err)
	}

	jobs := make([]domain.Job, 0, len(rows))
	for _, r := range rows {
		jobs = append(jobs, domain.Job{
			ID:          r.ID,
			JobTitle:    string(r.JobTitle),
			CompanyName: string(r.CompanyName),
			Location:    string(r.Location),
			Salary:      string(r.Salary),
			Duration:    string(r.Duration),
			JobType:     string(r.JobType),
			JobCategory: string(r.JobCategory),
			Description: string(r.Description),
			Email:       string(r.Email),
		})
	}
	return jobs, nil
}

// text decodes a JSON string, number or boolean cell into its text form.
type text string

func (t *text) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case nil:
		*t = ""
	case string:
		*t = text(x)
	case float64:
		*t = text(strconv.FormatFloat(x, 'f', -1, 64))
	case bool:
		*t = text(strconv.FormatBool(x))
	default:
		return fmt.Errorf("unsupported cell value %s", data)
	}
	return nil
}
