package pushrelay

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/coregx/pushrelay/model"
)

// SendRequest represents a request to create and broadcast a notification.
type SendRequest struct {
	Title    string                 `json:"title"`
	Body     string                 `json:"body"`
	Category model.Category         `json:"category"`
	Icon     string                 `json:"icon,omitempty"`
	Badge    string                 `json:"badge,omitempty"`
	Image    string                 `json:"image,omitempty"`
	Data     map[string]interface{} `json:"data,omitempty"`
	URL      string                 `json:"url,omitempty"`
}

// Validate checks the required send fields and that the category is known.
func (m SendRequest) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Title, validation.Required, validation.Length(1, 255)),
		validation.Field(&m.Body, validation.Required),
		validation.Field(&m.Category, validation.Required, validation.In(
			model.CategoryNewJobs,
			model.CategoryResults,
			model.CategoryAdmitCards,
			model.CategoryAnswerKeys,
			model.CategoryGeneralUpdates,
		)),
	)
}

// Payload assembles the notification data payload from the request.
// The click-through URL defaults to "/" when the caller omits it.
func (m SendRequest) Payload() model.Payload {
	url := m.URL
	if url == "" {
		url = "/"
	}
	return model.Payload{URL: url, Extra: m.Data}
}

// SubscribeRequest represents a client push registration being submitted to
// the subscription store.
type SubscribeRequest struct {
	Endpoint    string             `json:"endpoint"`
	P256dh      string             `json:"p256dh"`
	Auth        string             `json:"auth"`
	Preferences *model.Preferences `json:"preferences,omitempty"`
	UserAgent   string             `json:"userAgent,omitempty"`
	IPAddress   string             `json:"ipAddress,omitempty"`
}

// Validate checks that the endpoint and both encryption keys are present.
// The keys are structurally required for payload encryption.
func (m SubscribeRequest) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Endpoint, validation.Required, validation.Length(3, 512)),
		validation.Field(&m.P256dh, validation.Required),
		validation.Field(&m.Auth, validation.Required),
	)
}

// UpdatePreferencesRequest represents a preference change for an existing
// active subscription.
type UpdatePreferencesRequest struct {
	Endpoint    string            `json:"endpoint"`
	Preferences model.Preferences `json:"preferences"`
}

// Validate checks that the endpoint is present.
func (m UpdatePreferencesRequest) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Endpoint, validation.Required),
	)
}

// UnsubscribeRequest represents an explicit unsubscribe for an endpoint.
type UnsubscribeRequest struct {
	Endpoint string `json:"endpoint"`
}

// Validate checks that the endpoint is present.
func (m UnsubscribeRequest) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Endpoint, validation.Required),
	)
}

// TestSendRequest asks the server to dispatch one notification to the
// caller's own endpoint only.
type TestSendRequest struct {
	Endpoint string `json:"endpoint"`
}

// Validate checks that the endpoint is present.
func (m TestSendRequest) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Endpoint, validation.Required),
	)
}
