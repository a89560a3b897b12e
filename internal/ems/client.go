// Package ems fetches the student timetable page from the EMS portal.
package ems

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the EMS portal of the university.
	DefaultBaseURL = "https://ems.vlute.edu.vn"
	timetablePath  = "/vTKBSinhVien/ViewTKBSV"
	// maxPageSize bounds the body read from the portal.
	maxPageSize = 8 << 20
)

// ErrInvalidInput is returned when the student or semester id is empty.
var ErrInvalidInput = errors.New("invalid input")

// StatusError is returned when the portal answers with a non-200 status.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ems portal unexpected status: %s", e.Status)
}

// Client talks to the EMS portal.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Client for the portal at baseURL. An empty baseURL
// selects DefaultBaseURL and a nil httpClient selects DefaultHTTPClient.
func NewClient(logger *slog.Logger, baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = DefaultHTTPClient()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// DefaultHTTPClient returns the HTTP client used when none is supplied.
func DefaultHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

// FetchTimetablePage posts the student and semester ids to the timetable view
// and returns the raw HTML.
func (c *Client) FetchTimetablePage(ctx context.Context, studentID, semesterID string) (string, error) {
	if strings.TrimSpace(studentID) == "" || strings.TrimSpace(semesterID) == "" {
		return "", ErrInvalidInput
	}

	form := url.Values{}
	form.Set("hocky", semesterID)
	form.Set("masv", studentID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+timetablePath, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build timetable request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", "emscal/1.0")

	c.logger.Debug("Fetching timetable page", "studentID", studentID, "semesterID", semesterID)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch timetable page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return "", fmt.Errorf("failed to read timetable page: %w", err)
	}

	c.logger.Info("Fetched timetable page", "bytes", len(body))
	return string(body), nil
}
