package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, kind := range []string{"image", "video"} {
		for _, status := range []string{"completed", "failed"} {
			PipelineRunsTotal.WithLabelValues(kind, status)
		}
		PipelineRunDuration.WithLabelValues(kind)
	}

	variants := []string{"display", "blur", "thumb", "video", "poster"}
	for _, v := range variants {
		DerivativeGenerationsTotal.WithLabelValues(v, "success")
		DerivativeGenerationsTotal.WithLabelValues(v, "error")
		DerivativeGenerationDuration.WithLabelValues(v)
	}

	for _, reason := range []string{"unsupported_extension", "type_mismatch", "invalid_field_shape"} {
		UploadValidationFailures.WithLabelValues(reason)
	}

	for _, action := range []string{"login", "upload", "api"} {
		RateLimitRejections.WithLabelValues(action)
	}

	for _, decision := range []string{"approved", "rejected"} {
		ApprovalDecisionsTotal.WithLabelValues(decision)
	}

	for _, status := range []string{"success", "failure"} {
		AuthAttemptsTotal.WithLabelValues(status)
	}

	for _, op := range []string{"initialize_schema", "create_record", "get_record",
		"update_record", "list_records", "find_by_checksum", "create_decision",
		"get_decision", "validate_session", "create_session"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}
}
