package story

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	apperrors "storygraph/backend/pkg/errors"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateAnalysis rejects a malformed analysis before any write reaches the
// graph store. Struct tags cover field-level rules; the checks below cover
// cross-entity references the tags cannot express.
func ValidateAnalysis(a *ChapterAnalysis) error {
	if a == nil {
		return apperrors.NewInvalidAnalysis("analysis", "analysis is nil")
	}

	if err := validate.Struct(a); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return apperrors.NewInvalidAnalysis(fe.Namespace(), fmt.Sprintf("failed %q rule", fe.Tag()))
		}
		return apperrors.NewInvalidAnalysis("analysis", err.Error())
	}

	// Relationships must not link an entity to itself. Identity is the
	// (label, normalized name) pair: a Character and a Location sharing a
	// name are distinct entities and may be related.
	for _, rel := range a.Relationships {
		srcLabel := relationshipLabel(rel.SourceType)
		dstLabel := relationshipLabel(rel.TargetType)
		if srcLabel == dstLabel && NormalizeName(rel.Source) == NormalizeName(rel.Target) {
			return apperrors.NewInvalidAnalysis(
				fmt.Sprintf("relationships[%s]", rel.Type),
				fmt.Sprintf("source and target both resolve to %s %q", srcLabel, NormalizeName(rel.Source)),
			)
		}
	}

	// Temporal markers may only reference events named in the same analysis
	eventNames := make(map[string]bool, len(a.Events))
	for _, ev := range a.Events {
		eventNames[NormalizeName(ev.Name)] = true
	}
	for _, tm := range a.TemporalMarkers {
		for _, ref := range tm.AffectedEvents {
			if !eventNames[NormalizeName(ref)] {
				return apperrors.NewInvalidAnalysis(
					fmt.Sprintf("temporalMarkers[%s]", tm.ID),
					fmt.Sprintf("affected event %q is not in this chapter's events", ref),
				)
			}
		}
	}

	return nil
}

// relationshipLabel defaults an endpoint's entity type the same way the
// synchronizer does: unknown or empty types resolve as Character
func relationshipLabel(entityType string) string {
	for _, label := range MergeableLabels {
		if entityType == label {
			return label
		}
	}
	return LabelCharacter
}
