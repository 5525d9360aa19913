package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/cmdb/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

type fieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("notblank", validators.NotBlank)
	_ = v.RegisterValidation("jsonobject", func(fl validator.FieldLevel) bool {
		raw, ok := fl.Field().Interface().(json.RawMessage)
		if !ok {
			return false
		}
		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
			return true
		}
		var obj map[string]any
		return json.Unmarshal(trimmed, &obj) == nil
	})
	return v
}

// decodeAndValidate fills dst from the request body. On failure it returns
// the field-level details to report back.
func decodeAndValidate(r *http.Request, dst any) []fieldError {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return []fieldError{{Field: "body", Rule: "json", Message: err.Error()}}
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return []fieldError{{Field: "body", Rule: "invalid", Message: err.Error()}}
		}
		out := make([]fieldError, 0, len(verrs))
		for _, fe := range verrs {
			out = append(out, fieldError{Field: fe.Field(), Rule: fe.Tag(), Message: fieldMessage(fe)})
		}
		return out
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "notblank":
		return fmt.Sprintf("%s must not be blank", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "ip":
		return fmt.Sprintf("%s must be an IP address", fe.Field())
	case "jsonobject":
		return fmt.Sprintf("%s must be a JSON object", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}

type ciCreateRequest struct {
	Name            string          `json:"name" validate:"required,notblank,max=255"`
	Type            string          `json:"type" validate:"required,notblank,max=100"`
	Status          string          `json:"status" validate:"required,oneof=Active Maintenance Inactive Decommissioned"`
	Location        string          `json:"location"`
	Hostname        string          `json:"hostname"`
	IPAddress       string          `json:"ipAddress" validate:"omitempty,ip"`
	Environment     string          `json:"environment"`
	BusinessService string          `json:"businessService"`
	Owner           string          `json:"owner"`
	OperatingSystem string          `json:"operatingSystem"`
	Metadata        json.RawMessage `json:"metadata" validate:"jsonobject"`
}

func (req ciCreateRequest) toDomain() domain.ConfigurationItem {
	return domain.ConfigurationItem{
		Name:            strings.TrimSpace(req.Name),
		Type:            strings.TrimSpace(req.Type),
		Status:          req.Status,
		Location:        req.Location,
		Hostname:        req.Hostname,
		IPAddress:       req.IPAddress,
		Environment:     req.Environment,
		BusinessService: req.BusinessService,
		Owner:           req.Owner,
		OperatingSystem: req.OperatingSystem,
		Metadata:        nullToEmpty(req.Metadata),
	}
}

type ciUpdateRequest struct {
	Name            *string         `json:"name" validate:"omitnil,notblank,max=255"`
	Type            *string         `json:"type" validate:"omitnil,notblank,max=100"`
	Status          *string         `json:"status" validate:"omitempty,oneof=Active Maintenance Inactive Decommissioned"`
	Location        *string         `json:"location"`
	Hostname        *string         `json:"hostname"`
	IPAddress       *string         `json:"ipAddress" validate:"omitempty,ip"`
	Environment     *string         `json:"environment"`
	BusinessService *string         `json:"businessService"`
	Owner           *string         `json:"owner"`
	OperatingSystem *string         `json:"operatingSystem"`
	Metadata        json.RawMessage `json:"metadata" validate:"jsonobject"`
}

func (req ciUpdateRequest) toPatch() domain.CIPatch {
	return domain.CIPatch{
		Name:            req.Name,
		Type:            req.Type,
		Status:          req.Status,
		Location:        req.Location,
		Hostname:        req.Hostname,
		IPAddress:       req.IPAddress,
		Environment:     req.Environment,
		BusinessService: req.BusinessService,
		Owner:           req.Owner,
		OperatingSystem: req.OperatingSystem,
		Metadata:        nullToEmpty(req.Metadata),
	}
}

type ticketCreateRequest struct {
	Title       string  `json:"title" validate:"required,notblank,max=255"`
	Description string  `json:"description"`
	Status      string  `json:"status" validate:"required,notblank"`
	Priority    string  `json:"priority" validate:"required,notblank"`
	CIID        *string `json:"ciId"`
	Assignee    string  `json:"assignee"`
}

func (req ticketCreateRequest) toDomain() domain.Ticket {
	return domain.Ticket{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		CIID:        blankToNil(req.CIID),
		Assignee:    req.Assignee,
	}
}

type ticketUpdateRequest struct {
	Title       *string `json:"title" validate:"omitnil,notblank,max=255"`
	Description *string `json:"description"`
	Status      *string `json:"status" validate:"omitnil,notblank"`
	Priority    *string `json:"priority" validate:"omitnil,notblank"`
	CIID        *string `json:"ciId"`
	Assignee    *string `json:"assignee"`
}

func (req ticketUpdateRequest) toPatch() domain.TicketPatch {
	return domain.TicketPatch{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		CIID:        blankToNil(req.CIID),
		Assignee:    req.Assignee,
	}
}

// flexBool accepts a JSON boolean or the strings "true" and "false".
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	switch strings.TrimSpace(string(data)) {
	case "true", `"true"`:
		*b = true
	case "false", `"false"`, "null":
		*b = false
	default:
		return fmt.Errorf("breached must be a boolean, got %s", data)
	}
	return nil
}

type slaMetricCreateRequest struct {
	CIID        *string    `json:"ciId"`
	ServiceName string     `json:"serviceName" validate:"required,notblank,max=255"`
	MetricName  string     `json:"metricName" validate:"required,notblank,max=255"`
	TargetValue float64    `json:"targetValue"`
	ActualValue float64    `json:"actualValue"`
	Breached    flexBool   `json:"breached"`
	MeasuredAt  *time.Time `json:"measuredAt"`
}

func (req slaMetricCreateRequest) toDomain() domain.SLAMetric {
	m := domain.SLAMetric{
		CIID:        blankToNil(req.CIID),
		ServiceName: req.ServiceName,
		MetricName:  req.MetricName,
		TargetValue: req.TargetValue,
		ActualValue: req.ActualValue,
		Breached:    bool(req.Breached),
	}
	if req.MeasuredAt != nil {
		m.MeasuredAt = *req.MeasuredAt
	}
	return m
}

type relationshipCreateRequest struct {
	SourceID         string `json:"sourceId" validate:"required,notblank"`
	TargetID         string `json:"targetId" validate:"required,notblank"`
	RelationshipType string `json:"relationshipType" validate:"required,notblank,max=100"`
}

func (req relationshipCreateRequest) toDomain() domain.CIRelationship {
	return domain.CIRelationship{
		SourceID:         strings.TrimSpace(req.SourceID),
		TargetID:         strings.TrimSpace(req.TargetID),
		RelationshipType: strings.TrimSpace(req.RelationshipType),
	}
}

func blankToNil(v *string) *string {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil
	}
	s := strings.TrimSpace(*v)
	return &s
}

func nullToEmpty(raw json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	return trimmed
}
