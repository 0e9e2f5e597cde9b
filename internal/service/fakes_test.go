package service

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/motionforge/api/internal/model"
	"github.com/motionforge/api/internal/provider"
)

type storedObject struct {
	key         string
	data        []byte
	contentType string
}

// fakeStore is an in-memory client.StorageClient
type fakeStore struct {
	mu        sync.Mutex
	puts      []storedObject
	deleted   []string
	uploadErr error
}

func (s *fakeStore) Upload(_ context.Context, key string, body io.Reader, contentType string) (string, error) {
	if s.uploadErr != nil {
		return "", s.uploadErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts = append(s.puts, storedObject{key: key, data: data, contentType: contentType})
	return s.GetPublicURL(key), nil
}

func (s *fakeStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, key)
	return nil
}

func (s *fakeStore) GetPublicURL(key string) string {
	return "https://assets.example.com/" + key
}

type submitCall struct {
	prompt   string
	imageURL string
}

// fakeRegistry scripts SubmitWithReport and PollFor
type fakeRegistry struct {
	mu        sync.Mutex
	submits   []submitCall
	polls     [][2]string
	report    *provider.SubmitReport
	submitErr error
	status    *model.NormalizedStatus
	pollErr   error
}

func (r *fakeRegistry) SubmitWithReport(_ context.Context, prompt, imageURL string) (*provider.SubmitReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.submits = append(r.submits, submitCall{prompt: prompt, imageURL: imageURL})
	if r.submitErr != nil {
		return nil, r.submitErr
	}
	return r.report, nil
}

func (r *fakeRegistry) PollFor(_ context.Context, adapterID, jobID string) (*model.NormalizedStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.polls = append(r.polls, [2]string{adapterID, jobID})
	if r.pollErr != nil {
		return nil, r.pollErr
	}
	return r.status, nil
}

func (r *fakeRegistry) Primary() string { return "runway-2024-11-06" }

func (r *fakeRegistry) Has(adapterID string) bool {
	return adapterID == "runway-2024-11-06" || adapterID == "gen-v1"
}

type fakeMetrics struct {
	mu          sync.Mutex
	submissions []string
	uploads     []int
}

func (m *fakeMetrics) Submission(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submissions = append(m.submissions, outcome)
}

func (m *fakeMetrics) AssetUploaded(size int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads = append(m.uploads, size)
}

var errStoreDown = errors.New("bucket unavailable")
