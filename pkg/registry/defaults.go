package registry

const (
	TaskSearchMandateMatches    = "search-mandate-matches"
	TaskRecomputeMandateWeights = "recompute-mandate-weights"
	TaskRecordLearningSignal    = "record-learning-signal"
	TaskCalculateSignalValue    = "calculate-signal-value"
	TaskEvaluatePricing         = "evaluate-pricing-heuristic"
)

func obj(required []string, props map[string]interface{}) map[string]interface{} {
	s := map[string]interface{}{"type": "object", "properties": props}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func typ(t string, extra ...interface{}) map[string]interface{} {
	m := map[string]interface{}{"type": t}
	for i := 0; i+1 < len(extra); i += 2 {
		m[extra[i].(string)] = extra[i+1]
	}
	return m
}

// Default is the registry compiled into the service.
func Default() *ActivityRegistry {
	return &ActivityRegistry{
		Version: "1.0.0",
		Activities: []Activity{
			{
				ID:                   "matching.mandate.search",
				DisplayName:          "Search Mandate Matches",
				Description:          "Ranks candidate companies against a mandate's criteria and learned weights",
				Category:             "matching",
				Version:              "1.0.0",
				TaskType:             TaskSearchMandateMatches,
				ImplementationStatus: "completed",
				InputSchema: obj([]string{"mandateId"}, map[string]interface{}{
					"mandateId":       typ("string", "minLength", 1),
					"query":           typ("string"),
					"pageSize":        typ("integer", "minimum", 0),
					"includeContacts": typ("boolean"),
					"criteria":        typ("object"),
				}),
				OutputSchema: obj(nil, map[string]interface{}{
					"matches":        typ("array"),
					"hasMore":        typ("boolean"),
					"weightsVersion": typ("integer"),
				}),
				ErrorCodes: []string{"INVALID_INPUT", "INVALID_CRITERIA", "MANDATE_NOT_FOUND", "DATA_UNAVAILABLE"},
				Timeout:    "30s",
				Retries:    3,
				Workflows:  []string{"mandate-sourcing"},
				Tags:       []string{"matching", "search"},
			},
			{
				ID:                   "matching.weights.recompute",
				DisplayName:          "Recompute Mandate Weights",
				Description:          "Folds new learning signals into a mandate's factor weights",
				Category:             "matching",
				Version:              "1.0.0",
				TaskType:             TaskRecomputeMandateWeights,
				ImplementationStatus: "completed",
				InputSchema: obj(nil, map[string]interface{}{
					"mandateId": typ("string"),
				}),
				OutputSchema: obj(nil, map[string]interface{}{
					"updated":   typ("integer"),
					"unchanged": typ("integer"),
					"skipped":   typ("array"),
					"failed":    typ("array"),
				}),
				ErrorCodes: []string{"DATA_UNAVAILABLE", "WEIGHT_PERSIST_FAILED", "WEIGHT_VERSION_CONFLICT"},
				Timeout:    "5m",
				Retries:    2,
				Workflows:  []string{"weights-maintenance"},
				Tags:       []string{"matching", "learning"},
			},
			{
				ID:                   "matching.signal.record",
				DisplayName:          "Record Learning Signal",
				Description:          "Appends a user feedback signal for a mandate and company",
				Category:             "matching",
				Version:              "1.0.0",
				TaskType:             TaskRecordLearningSignal,
				ImplementationStatus: "completed",
				InputSchema: obj([]string{"mandateId", "companyId", "signal"}, map[string]interface{}{
					"mandateId": typ("string", "minLength", 1),
					"companyId": typ("string", "minLength", 1),
					"signal":    typ("string", "enum", []string{"favorite", "reject", "request_match", "reply", "meeting", "bounce"}),
					"weight":    typ("integer"),
				}),
				OutputSchema: obj(nil, map[string]interface{}{
					"signalId": typ("string"),
					"weight":   typ("integer"),
				}),
				ErrorCodes: []string{"INVALID_INPUT", "MALFORMED_SIGNAL", "SIGNAL_PERSIST_FAILED"},
				Timeout:    "10s",
				Retries:    3,
				Workflows:  []string{"mandate-sourcing"},
				Tags:       []string{"matching", "learning"},
			},
			{
				ID:                   "matching.signal.value",
				DisplayName:          "Calculate Signal Value Index",
				Description:          "Weighs recent press mentions and RFPs into a single index",
				Category:             "matching",
				Version:              "1.0.0",
				TaskType:             TaskCalculateSignalValue,
				ImplementationStatus: "completed",
				InputSchema: obj([]string{"press60d", "rfp60d"}, map[string]interface{}{
					"press60d": typ("integer", "minimum", 0),
					"rfp60d":   typ("integer", "minimum", 0),
				}),
				OutputSchema: obj(nil, map[string]interface{}{
					"svi":     typ("number"),
					"explain": typ("object"),
				}),
				ErrorCodes: []string{"INVALID_INPUT"},
				Timeout:    "5s",
				Retries:    0,
				Workflows:  []string{"account-review"},
				Tags:       []string{"scoring"},
			},
			{
				ID:                   "matching.pricing.evaluate",
				DisplayName:          "Evaluate Pricing Heuristic",
				Description:          "Estimates CLV, churn risk and ROI and suggests a discount or upgrade",
				Category:             "matching",
				Version:              "1.0.0",
				TaskType:             TaskEvaluatePricing,
				ImplementationStatus: "completed",
				InputSchema: obj([]string{"revenueEUR", "costEUR"}, map[string]interface{}{
					"revenueEUR":    typ("number", "minimum", 0),
					"costEUR":       typ("number", "minimum", 0),
					"tenureMonths":  typ("integer", "minimum", 0),
					"activityScore": typ("number", "minimum", 0, "maximum", 100),
					"usage":         typ("object"),
				}),
				OutputSchema: obj(nil, map[string]interface{}{
					"clv":               typ("number"),
					"churnRisk":         typ("number"),
					"roi":               typ("number"),
					"suggestedDiscount": typ("integer"),
					"overages":          typ("array"),
				}),
				ErrorCodes: []string{"INVALID_INPUT"},
				Timeout:    "5s",
				Retries:    0,
				Workflows:  []string{"account-review"},
				Tags:       []string{"pricing"},
			},
		},
	}
}
