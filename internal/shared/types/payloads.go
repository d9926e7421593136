package sharedtypes

import (
	"bytes"
	"encoding/json"

	"github.com/outofoffice3/aws-samples/hermes/internal/fnerr"
)

// CrashlyticsIssue describes the issue carried by Crashlytics alerts.
type CrashlyticsIssue struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Subtitle   string `json:"subtitle"`
	AppVersion string `json:"appVersion"`
}

// NewFatalIssuePayload is published when a new fatal issue is seen.
type NewFatalIssuePayload struct {
	AppID string           `json:"appId"`
	Issue CrashlyticsIssue `json:"issue"`
}

func (p *NewFatalIssuePayload) Validate() error {
	if p.AppID == "" {
		return fnerr.Missing("appId")
	}
	if p.Issue.ID == "" {
		return fnerr.Missing("issue.id")
	}
	return nil
}

// RegressionAlertPayload is published when a closed issue reappears.
type RegressionAlertPayload struct {
	AppID       string           `json:"appId"`
	Type        string           `json:"type"`
	Issue       CrashlyticsIssue `json:"issue"`
	ResolveTime string           `json:"resolveTime"`
}

func (p *RegressionAlertPayload) Validate() error {
	if p.Issue.ID == "" {
		return fnerr.Missing("issue.id")
	}
	return nil
}

// NewTesterDevicePayload is published when a tester registers an iOS device.
type NewTesterDevicePayload struct {
	AppID       string `json:"appId"`
	TesterName  string `json:"testerName"`
	TesterEmail string `json:"testerEmail"`
	DeviceID    string `json:"testerDeviceIdentifier"`
	DeviceModel string `json:"testerDeviceModelName"`
}

func (p *NewTesterDevicePayload) Validate() error {
	if p.TesterEmail == "" {
		return fnerr.Missing("testerEmail")
	}
	if p.DeviceID == "" {
		return fnerr.Missing("testerDeviceIdentifier")
	}
	return nil
}

// PerformanceThresholdPayload is published when a performance threshold is crossed.
type PerformanceThresholdPayload struct {
	AppID               string   `json:"appId"`
	EventName           string   `json:"eventName"`
	EventType           string   `json:"eventType"`
	MetricType          string   `json:"metricType"`
	NumSamples          int64    `json:"numSamples"`
	ThresholdValue      float64  `json:"thresholdValue"`
	ThresholdUnit       string   `json:"thresholdUnit"`
	ConditionPercentile *float64 `json:"conditionPercentile,omitempty"`
	AppVersion          *string  `json:"appVersion,omitempty"`
	ViolationValue      float64  `json:"violationValue"`
	ViolationUnit       string   `json:"violationUnit"`
	InvestigateURI      string   `json:"investigateUri"`
}

func (p *PerformanceThresholdPayload) Validate() error {
	if p.EventName == "" {
		return fnerr.Missing("eventName")
	}
	return nil
}

// InAppFeedbackPayload is published when a tester submits in-app feedback.
type InAppFeedbackPayload struct {
	AppID              string  `json:"appId"`
	FeedbackReport     string  `json:"feedbackReport"`
	FeedbackConsoleURI string  `json:"feedbackConsoleUri"`
	TesterName         *string `json:"testerName,omitempty"`
	TesterEmail        string  `json:"testerEmail"`
	AppVersion         string  `json:"appVersion"`
	Text               string  `json:"text"`
	ScreenshotURI      string  `json:"screenshotUri,omitempty"`
}

func (p *InAppFeedbackPayload) Validate() error {
	if p.Text == "" {
		return fnerr.Missing("text")
	}
	if p.TesterEmail == "" {
		return fnerr.Missing("testerEmail")
	}
	return nil
}

// TestMatrixCompletedPayload is published when a test matrix finishes.
type TestMatrixCompletedPayload struct {
	TestMatrixID   string `json:"testMatrixId"`
	State          string `json:"state"`
	OutcomeSummary string `json:"outcomeSummary"`
	CreateTime     string `json:"createTime,omitempty"`
}

func (p *TestMatrixCompletedPayload) Validate() error {
	if p.TestMatrixID == "" {
		return fnerr.Missing("testMatrixId")
	}
	return nil
}

// StorageObject describes a finalized blob.
type StorageObject struct {
	Bucket      string `json:"bucket"`
	Name        string `json:"name"`
	ContentType string `json:"contentType,omitempty"`
	Size        int64  `json:"size,omitempty"`
}

func (p *StorageObject) Validate() error {
	if p.Bucket == "" {
		return fnerr.Missing("bucket")
	}
	if p.Name == "" {
		return fnerr.Missing("name")
	}
	return nil
}

// Change is a before/after pair for a database or document write. A side is
// absent when it is missing or JSON null.
type Change struct {
	Before json.RawMessage `json:"before,omitempty"`
	After  json.RawMessage `json:"after,omitempty"`
}

// Exists reports whether raw holds a value other than null.
func Exists(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// DocumentWrite is a document change delivered with the identity of the writer.
type DocumentWrite struct {
	Change
	AuthType string `json:"authType"`
	AuthID   string `json:"authId,omitempty"`
}

// AuthUserRecord is the candidate user seen by blocking functions.
type AuthUserRecord struct {
	UID           string  `json:"uid"`
	Email         *string `json:"email,omitempty"`
	EmailVerified bool    `json:"emailVerified"`
	DisplayName   *string `json:"displayName,omitempty"`
	PhotoURL      *string `json:"photoUrl,omitempty"`
}

// AuthCredential is the federated credential used for the sign-up or sign-in.
type AuthCredential struct {
	ProviderID  string         `json:"providerId"`
	AccessToken string         `json:"accessToken,omitempty"`
	Claims      map[string]any `json:"claims,omitempty"`
}

// AuthBlockingPayload is delivered before a user is created or signs in.
type AuthBlockingPayload struct {
	Data       AuthUserRecord  `json:"data"`
	IPAddress  string          `json:"ipAddress"`
	UserAgent  string          `json:"userAgent,omitempty"`
	Credential *AuthCredential `json:"credential,omitempty"`
}

func (p *AuthBlockingPayload) Validate() error {
	if p.Data.UID == "" {
		return fnerr.Missing("data.uid")
	}
	return nil
}

// BackupTask is the body of one APOD backup task.
type BackupTask struct {
	Date string `json:"date"`
}

func (p *BackupTask) Validate() error {
	if p.Date == "" {
		return fnerr.Missing("date")
	}
	return nil
}

// PubSubMessage is a published message. Data is base64 encoded.
type PubSubMessage struct {
	MessageID  string            `json:"messageId"`
	Data       string            `json:"data,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// MessagePublished wraps a PubSubMessage the way the trigger delivers it.
type MessagePublished struct {
	Message      PubSubMessage `json:"message"`
	Subscription string        `json:"subscription,omitempty"`
}

// CustomEvent is a custom event delivered from the event bus.
type CustomEvent struct {
	Type    string          `json:"type"`
	Source  string          `json:"source"`
	Subject string          `json:"subject"`
	Data    json.RawMessage `json:"data"`
}

func (p *CustomEvent) Validate() error {
	if p.Subject == "" {
		return fnerr.Missing("subject")
	}
	return nil
}

// ConfigUpdate is published when a new remote config template version is saved.
type ConfigUpdate struct {
	VersionNumber int64  `json:"versionNumber"`
	UpdateOrigin  string `json:"updateOrigin,omitempty"`
	UpdateType    string `json:"updateType,omitempty"`
	UpdateUser    string `json:"updateUser,omitempty"`
}

func (p *ConfigUpdate) Validate() error {
	if p.VersionNumber < 1 {
		return fnerr.WrongType("versionNumber", "a positive integer")
	}
	return nil
}

// HTTPRequest is the subset of a request handler's input the handlers read.
type HTTPRequest struct {
	Method  string            `json:"method"`
	Path    string            `json:"path"`
	Query   map[string]string `json:"query,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body,omitempty"`
}

// HTTPResponse is returned by request handlers.
type HTTPResponse struct {
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body"`
}

// CallableRequest carries the data and verified auth context of a callable invocation.
type CallableRequest struct {
	Data json.RawMessage `json:"data"`
	Auth *AuthContext    `json:"auth,omitempty"`
}

// AuthContext is the verified caller identity.
type AuthContext struct {
	UID   string         `json:"uid"`
	Token map[string]any `json:"token,omitempty"`
}

// ScheduledTick is delivered by the scheduler.
type ScheduledTick struct {
	ScheduleTime string `json:"scheduleTime,omitempty"`
	JobName      string `json:"jobName,omitempty"`
}
