// Package mockcloudwatch serves the two CloudWatch Logs operations the
// plugin uses and checks that every message is a well formed EMF document.
package mockcloudwatch

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/anthonydresser/fluent-bit-khisto/common"
	"github.com/anthonydresser/fluent-bit-khisto/log"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
)

const (
	targetCreateLogStream = "Logs_20140328.CreateLogStream"
	targetPutLogEvents    = "Logs_20140328.PutLogEvents"
	contentType           = "application/x-amz-json-1.1"

	// CloudWatch rejects distributions with more entries.
	maxDistributionValues = 100
)

type LogEvent struct {
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

type logStream struct {
	creationTime time.Time
	events       []LogEvent
}

type createLogStreamRequest struct {
	LogGroupName  string `json:"logGroupName"`
	LogStreamName string `json:"logStreamName"`
}

type putLogEventsRequest struct {
	LogGroupName  string     `json:"logGroupName"`
	LogStreamName string     `json:"logStreamName"`
	LogEvents     []LogEvent `json:"logEvents"`
}

type putLogEventsResponse struct {
	NextSequenceToken string `json:"nextSequenceToken"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Server struct {
	mu        sync.RWMutex
	logGroups map[string]map[string]*logStream // logGroup -> logStreamName -> stream
	tokens    map[string]int                   // stream -> sequence token
}

func NewServer() *Server {
	return &Server{
		logGroups: make(map[string]map[string]*logStream),
		tokens:    make(map[string]int),
	}
}

// Events returns a copy of the events stored in a stream.
func (s *Server) Events(group, stream string) []LogEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ls, ok := s.logGroups[group][stream]
	if !ok {
		return nil
	}
	return append([]LogEvent(nil), ls.events...)
}

// Streams lists the stream names of a log group.
func (s *Server) Streams(group string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.logGroups[group]))
	for name := range s.logGroups[group] {
		names = append(names, name)
	}
	return names
}

// ServeHTTP dispatches on the X-Amz-Target header and rejects unsigned
// requests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	auth := parseAuthHeader(r.Header["Authorization"])
	if auth == nil {
		sendErrorResponse(w, "MissingHeaderException", "Missing Authorization header", http.StatusBadRequest)
		return
	} else if auth["Signature"] == "" {
		sendErrorResponse(w, "MissingHeaderException", "Missing Signature header", http.StatusBadRequest)
		return
	}
	if r.Header.Get("Content-Type") != contentType {
		sendErrorResponse(w, "InvalidHeaderException", "Invalid Content-Type", http.StatusBadRequest)
		return
	}

	target := r.Header.Get("X-Amz-Target")
	switch target {
	case targetCreateLogStream:
		s.handleCreateLogStream(w, r)
	case targetPutLogEvents:
		s.handlePutLogEvents(w, r)
	default:
		log.Warn().Printf("404 Not Found: %s %s (Target: %s)", r.Method, r.URL.Path, target)
		sendErrorResponse(w, "UnknownOperationException", "Unknown operation", http.StatusNotFound)
	}
}

func (s *Server) handleCreateLogStream(w http.ResponseWriter, r *http.Request) {
	var req createLogStreamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendErrorResponse(w, "InvalidParameterException", err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.logGroups[req.LogGroupName]; !exists {
		s.logGroups[req.LogGroupName] = make(map[string]*logStream)
	}
	if _, exists := s.logGroups[req.LogGroupName][req.LogStreamName]; exists {
		sendErrorResponse(w, "ResourceAlreadyExistsException",
			fmt.Sprintf("Log stream %s already exists", req.LogStreamName),
			http.StatusBadRequest)
		return
	}
	s.logGroups[req.LogGroupName][req.LogStreamName] = &logStream{creationTime: time.Now()}
	log.Info().Printf("created log stream %s/%s", req.LogGroupName, req.LogStreamName)

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("{}"))
}

func (s *Server) handlePutLogEvents(w http.ResponseWriter, r *http.Request) {
	var req putLogEventsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendErrorResponse(w, "InvalidParameterException", err.Error(), http.StatusBadRequest)
		return
	}

	for i, event := range req.LogEvents {
		if err := ValidateMessage(event.Message); err != nil {
			sendErrorResponse(w, "InvalidParameterException", fmt.Sprintf("event %d: %v", i, err), http.StatusBadRequest)
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stream, exists := s.logGroups[req.LogGroupName][req.LogStreamName]
	if !exists {
		sendErrorResponse(w, "ResourceNotFoundException",
			fmt.Sprintf("Log stream %s/%s does not exist", req.LogGroupName, req.LogStreamName),
			http.StatusBadRequest)
		return
	}
	stream.events = append(stream.events, req.LogEvents...)

	streamKey := req.LogGroupName + ":" + req.LogStreamName
	s.tokens[streamKey]++
	log.Info().Printf("wrote %d events to %s", len(req.LogEvents), streamKey)

	w.Header().Set("Content-Type", contentType)
	_ = json.NewEncoder(w).Encode(putLogEventsResponse{
		NextSequenceToken: fmt.Sprintf("token-%d", s.tokens[streamKey]),
	})
}

// ValidateMessage checks that message is an EMF document whose declared
// metrics and dimensions are present, and whose distributions pair every
// value with a count.
func ValidateMessage(message string) error {
	var event common.EMFEvent
	if err := json.Unmarshal([]byte(message), &event); err != nil {
		return err
	}

	for _, def := range event.AWS.CloudWatchMetrics {
		for _, dimensionSet := range def.Dimensions {
			for _, dimension := range dimensionSet {
				if _, exists := event.OtherFields[dimension]; !exists {
					return fmt.Errorf("missing dimension %s", dimension)
				}
			}
		}
	}
	for _, name := range event.AWS.MetricNames() {
		value, exists := event.OtherFields[name]
		if !exists {
			return fmt.Errorf("missing metric %s", name)
		}
		if err := validateMetricValue(value); err != nil {
			return fmt.Errorf("metric %s: %w", name, err)
		}
	}
	return nil
}

func validateMetricValue(value interface{}) error {
	switch v := value.(type) {
	case float64:
		return nil
	case map[string]interface{}:
		values, _ := v["Values"].([]interface{})
		counts, _ := v["Counts"].([]interface{})
		if len(values) != len(counts) {
			return fmt.Errorf("%d values for %d counts", len(values), len(counts))
		}
		if len(values) > maxDistributionValues {
			return fmt.Errorf("%d values, at most %d are accepted", len(values), maxDistributionValues)
		}
		for _, key := range []string{"Min", "Max", "Sum", "Count"} {
			if _, ok := v[key].(float64); !ok {
				return fmt.Errorf("missing %s", key)
			}
		}
		return nil
	}
	return fmt.Errorf("unexpected value %v", value)
}

func sendErrorResponse(w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Code:    code,
		Message: message,
	})
}

func parseAuthHeader(header []string) map[string]string {
	if len(header) == 0 {
		return nil
	}

	auth := make(map[string]string)
	for _, v := range header {
		for _, part := range strings.Fields(v) {
			part = strings.TrimSuffix(part, ",")
			key, value, found := strings.Cut(part, "=")
			if !found {
				auth[key] = ""
				continue
			}
			auth[key] = strings.Trim(value, "\"")
		}
	}
	return auth
}

// NewClient returns a CloudWatch Logs client with static credentials that
// talks to the server listening at url.
func NewClient(url string) *cloudwatchlogs.Client {
	return cloudwatchlogs.New(cloudwatchlogs.Options{
		Region:       "us-east-1",
		Credentials:  credentials.NewStaticCredentialsProvider("AKIDMOCK", "mock-secret", ""),
		BaseEndpoint: aws.String(url),
	})
}
