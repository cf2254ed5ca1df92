package packagekit

import (
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/grovetools/wizard/errors"
	"github.com/grovetools/wizard/logging"
	"github.com/mitchellh/mapstructure"
)

var log = logging.NewLogger("packagekit")

// PercentageSource reads the live aggregate percentage of a transaction.
type PercentageSource interface {
	Percentage() (uint32, error)
}

// percentageUnknown is the value PackageKit reports when it cannot
// estimate progress.
const percentageUnknown = 101

// detailsPayload mirrors the keys of the Details signal.
type detailsPayload struct {
	PackageID   string `mapstructure:"package-id"`
	Summary     string `mapstructure:"summary"`
	Description string `mapstructure:"description"`
	URL         string `mapstructure:"url"`
	License     string `mapstructure:"license"`
	Size        uint64 `mapstructure:"size"`
}

// Decode turns one transaction signal into an Event. Details payloads
// degrade per field; the fixed-shape signals fail with MALFORMED_SIGNAL when
// their payload does not match the protocol.
func Decode(member string, body []interface{}, live PercentageSource) (Event, error) {
	switch member {
	case "Details":
		return decodeDetails(body), nil
	case "Package":
		info, err := decodePackage(member, body)
		if err != nil {
			return nil, err
		}
		return Package{Infos: []InstalledPackageInfo{info}}, nil
	case "Packages":
		return decodePackages(body)
	case "ItemProgress":
		return decodeItemProgress(body, live)
	case "ErrorCode":
		if len(body) != 2 {
			return nil, errors.MalformedSignal(member, fmt.Sprintf("expected 2 values, got %d", len(body)))
		}
		code, ok := body[0].(uint32)
		if !ok {
			return nil, errors.MalformedSignal(member, fmt.Sprintf("code is %T", body[0]))
		}
		message, ok := body[1].(string)
		if !ok {
			return nil, errors.MalformedSignal(member, fmt.Sprintf("message is %T", body[1]))
		}
		return ErrorCode{Code: code, Message: message}, nil
	case "Finished":
		f := Finished{}
		if len(body) > 0 {
			if exit, ok := body[0].(uint32); ok {
				f.Exit = Exit(exit)
			}
		}
		if len(body) > 1 {
			if runtime, ok := body[1].(uint32); ok {
				f.Runtime = runtime
			}
		}
		return f, nil
	default:
		log.WithField("member", member).Debug("Ignoring unknown signal")
		return Unknown{Name: member}, nil
	}
}

func decodeDetails(body []interface{}) Details {
	if len(body) == 0 {
		log.Warn("Details signal without payload")
		return Details{}
	}
	raw, ok := asMap(body[0])
	if !ok {
		log.WithField("type", fmt.Sprintf("%T", body[0])).Warn("Details payload is not a mapping")
		return Details{}
	}

	var payload detailsPayload
	var md mapstructure.Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:   &payload,
		Metadata: &md,
	})
	if err != nil {
		log.WithError(err).Warn("Failed to create Details decoder")
		return Details{}
	}
	if err := decoder.Decode(raw); err != nil {
		// Fields that failed keep their zero value.
		log.WithError(err).Warn("Details payload has mistyped fields")
	}

	for _, key := range []string{"package-id", "summary", "description", "url", "license", "size"} {
		if _, present := raw[key]; !present {
			log.WithField("key", key).Debug("Details payload is missing a key")
		}
	}
	if len(md.Unused) > 0 {
		log.WithField("keys", md.Unused).Debug("Details payload has extra keys")
	}

	if payload.PackageID == "" {
		return Details{}
	}

	detail := NewPackageDetail(payload.PackageID)
	detail.Summary = payload.Summary
	detail.Description = payload.Description
	detail.URL = payload.URL
	detail.License = payload.License
	detail.SizeBytes = payload.Size
	detail.Size = FormatSize(payload.Size)
	return Details{Detail: detail}
}

// asMap unwraps an a{sv} payload into plain values.
func asMap(v interface{}) (map[string]interface{}, bool) {
	switch m := v.(type) {
	case map[string]dbus.Variant:
		out := make(map[string]interface{}, len(m))
		for k, val := range m {
			out[k] = unwrap(val.Value())
		}
		return out, true
	case map[string]interface{}:
		out := make(map[string]interface{}, len(m))
		for k, val := range m {
			out[k] = unwrap(val)
		}
		return out, true
	}
	return nil, false
}

func unwrap(v interface{}) interface{} {
	for {
		variant, ok := v.(dbus.Variant)
		if !ok {
			return v
		}
		v = variant.Value()
	}
}

func decodePackage(member string, tuple []interface{}) (InstalledPackageInfo, error) {
	if len(tuple) != 3 {
		return InstalledPackageInfo{}, errors.MalformedSignal(member, fmt.Sprintf("expected 3 values, got %d", len(tuple)))
	}
	info, ok := tuple[0].(uint32)
	if !ok {
		return InstalledPackageInfo{}, errors.MalformedSignal(member, fmt.Sprintf("info is %T", tuple[0]))
	}
	id, ok := tuple[1].(string)
	if !ok {
		return InstalledPackageInfo{}, errors.MalformedSignal(member, fmt.Sprintf("package id is %T", tuple[1]))
	}
	summary, ok := tuple[2].(string)
	if !ok {
		return InstalledPackageInfo{}, errors.MalformedSignal(member, fmt.Sprintf("summary is %T", tuple[2]))
	}
	return InstalledPackageInfo{Info: Info(info), PackageID: id, Summary: summary}, nil
}

func decodePackages(body []interface{}) (Event, error) {
	const member = "Packages"
	if len(body) != 1 {
		return nil, errors.MalformedSignal(member, fmt.Sprintf("expected 1 value, got %d", len(body)))
	}

	var entries [][]interface{}
	switch list := body[0].(type) {
	case [][]interface{}:
		entries = list
	case []interface{}:
		for _, item := range list {
			tuple, ok := item.([]interface{})
			if !ok {
				return nil, errors.MalformedSignal(member, fmt.Sprintf("entry is %T", item))
			}
			entries = append(entries, tuple)
		}
	default:
		return nil, errors.MalformedSignal(member, fmt.Sprintf("payload is %T", body[0]))
	}

	infos := make([]InstalledPackageInfo, 0, len(entries))
	for _, tuple := range entries {
		info, err := decodePackage(member, tuple)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return Package{Infos: infos}, nil
}

func decodeItemProgress(body []interface{}, live PercentageSource) (Event, error) {
	const member = "ItemProgress"
	if len(body) != 3 {
		return nil, errors.MalformedSignal(member, fmt.Sprintf("expected 3 values, got %d", len(body)))
	}
	id, ok := body[0].(string)
	if !ok {
		return nil, errors.MalformedSignal(member, fmt.Sprintf("package id is %T", body[0]))
	}
	status, ok := body[1].(uint32)
	if !ok {
		return nil, errors.MalformedSignal(member, fmt.Sprintf("status is %T", body[1]))
	}
	item, ok := body[2].(uint32)
	if !ok {
		return nil, errors.MalformedSignal(member, fmt.Sprintf("percentage is %T", body[2]))
	}

	overall := item
	if live != nil {
		pct, err := live.Percentage()
		switch {
		case err != nil:
			log.WithError(err).Debug("Percentage unavailable, using item percentage")
		case pct >= percentageUnknown:
			// Keep the item percentage.
		default:
			overall = pct
		}
	}

	return ItemProgress{Sample: ProgressSample{
		PackageID:         id,
		Status:            Status(status),
		ItemPercentage:    item,
		OverallPercentage: overall,
	}}, nil
}
