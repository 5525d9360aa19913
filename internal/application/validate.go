package application

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/atvirokodosprendimai/cmdb/internal/domain"
	"github.com/go-playground/validator/v10"
)

var fieldCheck = validator.New()

// checkCI applies the configuration item rules every transport shares. An
// empty status is accepted and stored as Active.
func checkCI(ci domain.ConfigurationItem) error {
	if strings.TrimSpace(ci.Name) == "" || strings.TrimSpace(ci.Type) == "" {
		return fmt.Errorf("%w: name and type are required", domain.ErrInvalidInput)
	}
	if ci.Status != "" {
		if err := checkStatus(ci.Status); err != nil {
			return err
		}
	}
	if err := checkIP(ci.IPAddress); err != nil {
		return err
	}
	return checkMetadata(ci.Metadata)
}

func checkCIPatch(p domain.CIPatch) error {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return fmt.Errorf("%w: name must not be blank", domain.ErrInvalidInput)
	}
	if p.Type != nil && strings.TrimSpace(*p.Type) == "" {
		return fmt.Errorf("%w: type must not be blank", domain.ErrInvalidInput)
	}
	if p.Status != nil {
		if err := checkStatus(*p.Status); err != nil {
			return err
		}
	}
	if p.IPAddress != nil {
		if err := checkIP(*p.IPAddress); err != nil {
			return err
		}
	}
	return checkMetadata(p.Metadata)
}

func checkStatus(status string) error {
	if !domain.ValidCIStatus(status) {
		return fmt.Errorf("%w: status must be one of: %s", domain.ErrInvalidInput, strings.Join(domain.CIStatuses, ", "))
	}
	return nil
}

// checkIP allows an empty address so a patch can clear it.
func checkIP(ip string) error {
	if ip == "" {
		return nil
	}
	if err := fieldCheck.Var(ip, "ip"); err != nil {
		return fmt.Errorf("%w: ipAddress %q is not an IP address", domain.ErrInvalidInput, ip)
	}
	return nil
}

func checkMetadata(raw json.RawMessage) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return fmt.Errorf("%w: metadata must be a JSON object", domain.ErrInvalidInput)
	}
	return nil
}
