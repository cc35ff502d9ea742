// Package version projects field-level diffs out of stored change
// descriptions for version views.
package version

import (
	"encoding/json"
	"strings"

	"github.com/metacat-io/metacat/internal/domain"
)

// FieldDiff is the display-ready change for a single field. At most one of
// Added, Updated, Deleted is set.
type FieldDiff struct {
	Added   *domain.FieldChange `json:"added,omitempty"`
	Updated *domain.FieldChange `json:"updated,omitempty"`
	Deleted *domain.FieldChange `json:"deleted,omitempty"`
}

// IsEmpty reports whether the field did not change.
func (d FieldDiff) IsEmpty() bool {
	return d.Added == nil && d.Updated == nil && d.Deleted == nil
}

// GetDiffByFieldName finds the change recorded for fieldName, matching the
// name exactly or as a path prefix so nested and array fields are picked up
// (e.g. "columns" matches "columns[2].description"). A nil change description
// degrades to the zero diff; version views must render for entities with no
// history.
//
// Well-formed backend output records a field in at most one category. If that
// is ever violated, added wins over updated, which wins over deleted.
func GetDiffByFieldName(fieldName string, cd *domain.ChangeDescription) FieldDiff {
	if cd == nil || fieldName == "" {
		return FieldDiff{}
	}

	if change := findFieldChange(fieldName, cd.FieldsAdded); change != nil {
		return FieldDiff{Added: change}
	}
	if change := findFieldChange(fieldName, cd.FieldsUpdated); change != nil {
		return FieldDiff{Updated: change}
	}
	if change := findFieldChange(fieldName, cd.FieldsDeleted); change != nil {
		return FieldDiff{Deleted: change}
	}

	return FieldDiff{}
}

func findFieldChange(fieldName string, changes []domain.FieldChange) *domain.FieldChange {
	for i := range changes {
		name := changes[i].Name
		if name == fieldName ||
			strings.HasPrefix(name, fieldName+".") ||
			strings.HasPrefix(name, fieldName+"[") {
			return &changes[i]
		}
	}
	return nil
}

// GetChangedEntityOldValue extracts the raw old value from a diff, defaulting
// to an empty-object literal so callers can unmarshal without nil checks.
func GetChangedEntityOldValue(diff FieldDiff) string {
	switch {
	case diff.Updated != nil && diff.Updated.OldValue != "":
		return diff.Updated.OldValue
	case diff.Deleted != nil && diff.Deleted.OldValue != "":
		return diff.Deleted.OldValue
	default:
		return "{}"
	}
}

// GetChangedEntityNewValue extracts the raw new value from a diff, defaulting
// to an empty-object literal so callers can unmarshal without nil checks.
func GetChangedEntityNewValue(diff FieldDiff) string {
	switch {
	case diff.Added != nil && diff.Added.NewValue != "":
		return diff.Added.NewValue
	case diff.Updated != nil && diff.Updated.NewValue != "":
		return diff.Updated.NewValue
	default:
		return "{}"
	}
}

// ParseValue unmarshals a raw change value into a generic JSON value.
func ParseValue(raw string) (any, error) {
	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return nil, err
	}
	return value, nil
}

// GetDiffValue renders old and new text as a single markup string: the old
// text marked for strikethrough, the new text marked for highlight. An empty
// old text renders as a pure addition, an empty new text as a pure removal.
// Marker characters inside the values are escaped so the rich-text renderer
// downstream can always re-parse the output.
func GetDiffValue(oldText, newText string) string {
	oldText = escapeMarkers(oldText)
	newText = escapeMarkers(newText)

	switch {
	case oldText == "" && newText == "":
		return ""
	case oldText == "":
		return "==" + newText + "=="
	case newText == "":
		return "~~" + oldText + "~~"
	default:
		return "~~" + oldText + "~~ ==" + newText + "=="
	}
}

func escapeMarkers(text string) string {
	text = strings.ReplaceAll(text, "~~", "\\~\\~")
	return strings.ReplaceAll(text, "==", "\\=\\=")
}

// MutuallyExclusiveFieldName is the boolean flag on classifications that
// restricts an asset to one tag from the group.
const MutuallyExclusiveFieldName = "mutuallyExclusive"

// GetMutuallyExclusiveDiff renders the change of the mutually exclusive flag
// as "true"/"false" text routed through the regular diff markup.
func GetMutuallyExclusiveDiff(cd *domain.ChangeDescription) string {
	diff := GetDiffByFieldName(MutuallyExclusiveFieldName, cd)

	var oldRaw, newRaw string
	switch {
	case diff.Updated != nil:
		oldRaw, newRaw = diff.Updated.OldValue, diff.Updated.NewValue
	case diff.Added != nil:
		newRaw = diff.Added.NewValue
	case diff.Deleted != nil:
		oldRaw = diff.Deleted.OldValue
	default:
		return ""
	}

	return GetDiffValue(boolText(oldRaw), boolText(newRaw))
}

func boolText(raw string) string {
	if raw == "" {
		return ""
	}
	var flag bool
	if err := json.Unmarshal([]byte(raw), &flag); err != nil {
		return ""
	}
	if flag {
		return "true"
	}
	return "false"
}
