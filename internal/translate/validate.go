package translate

import "github.com/xavierjflanagan/Guardian-sub001/internal/model"

// ValidateRecord reports every missing required field on a record. An empty
// slice means the record is complete. Used both as a completeness check
// before insertion and as a test assertion helper.
func ValidateRecord(rec model.EntityAuditRecord) []string {
	var missing []string
	if rec.ID == "" {
		missing = append(missing, "id")
	}
	if rec.SessionID == "" {
		missing = append(missing, "processing_session_id")
	}
	if rec.ShellFileID == "" {
		missing = append(missing, "shell_file_id")
	}
	if rec.PatientID == "" {
		missing = append(missing, "patient_id")
	}
	if rec.EntityID == "" {
		missing = append(missing, "entity_id")
	}
	if rec.OriginalText == "" {
		missing = append(missing, "original_text")
	}
	if rec.Category == "" {
		missing = append(missing, "entity_category")
	}
	if rec.Subtype == "" {
		missing = append(missing, "entity_subtype")
	}
	if rec.ProcessingPriority == "" {
		missing = append(missing, "processing_priority")
	}
	if rec.Pass2Status == "" {
		missing = append(missing, "pass2_status")
	}
	if rec.RequiresSchemas == nil {
		missing = append(missing, "requires_schemas")
	}
	if rec.CreatedAt.IsZero() {
		missing = append(missing, "created_at")
	}
	return missing
}

// ValidateRecords maps each incomplete record's entity id to its missing
// fields. A nil map means every record passed.
func ValidateRecords(records []model.EntityAuditRecord) map[string][]string {
	var bad map[string][]string
	for _, rec := range records {
		if missing := ValidateRecord(rec); len(missing) > 0 {
			if bad == nil {
				bad = make(map[string][]string)
			}
			bad[rec.EntityID] = missing
		}
	}
	return bad
}
