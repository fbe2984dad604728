package agent

import (
	"context"
	"strings"

	"github.com/hupe1980/domainmesh/core"
	"github.com/hupe1980/domainmesh/model"
	"github.com/hupe1980/domainmesh/retrieval"
	"github.com/hupe1980/domainmesh/tool"
)

const legalInstructions = `You are an expert legal analyst specialized in contract review, regulatory compliance and legal risk assessment.

Guidelines:
1. Identify risks and one-sided provisions explicitly.
2. Reference the relevant clause or regulation for every finding.
3. Distinguish findings from recommendations.
4. Note that your analysis is informational and not legal advice.`

// NewLegal builds the legal domain agent with its tool suite.
func NewLegal(client *model.Client, pipeline *retrieval.Pipeline, optFns ...func(o *Options)) *DomainAgent {
	registry := tool.NewRegistry()
	registry.MustRegister(LegalTools()...)
	if pipeline != nil {
		registry.MustRegister(NewKnowledgeSearchTool(pipeline, 5))
	}
	return New(core.AgentLegal,
		"Expert legal analyst for contract review, compliance and risk assessment",
		legalInstructions, client, registry, optFns...)
}

// LegalTools returns the legal tool suite. Clause detection is heuristic
// keyword scanning over the supplied text.
func LegalTools() []tool.Tool {
	return []tool.Tool{
		contractClausesTool(),
		ndaAnalysisTool(),
		complianceCheckTool(),
		contractCompareTool(),
		legalRiskTool(),
	}
}

// clauseMarkers maps clause types to the phrases that signal their presence.
var clauseMarkers = map[string][]string{
	"indemnification":         {"indemnif", "hold harmless"},
	"limitation_of_liability": {"limitation of liability", "consequential damages", "liability cap", "shall not be liable"},
	"termination":             {"terminat", "notice period", "cure period"},
	"confidentiality":         {"confidential", "non-disclosure", "trade secret"},
	"ip_ownership":            {"intellectual property", "work product", "ownership of", "assign"},
	"governing_law":           {"governing law", "governed by the laws"},
	"dispute_resolution":      {"arbitration", "dispute resolution", "mediation", "jurisdiction"},
}

var defaultClauseTypes = []string{
	"indemnification", "limitation_of_liability", "termination",
	"confidentiality", "ip_ownership", "governing_law", "dispute_resolution",
}

func contractClausesTool() tool.Tool {
	return tool.NewFunctionTool(
		"extract_contract_clauses",
		"Extract and categorize clauses from a contract",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"contract_text": map[string]any{
					"type":        "string",
					"description": "The contract text to analyze",
				},
				"clause_types": map[string]any{
					"type":        "array",
					"description": "Specific clause types to extract; defaults to the standard set",
				},
			},
			"required": []string{"contract_text"},
		},
		func(_ context.Context, args map[string]any) (any, error) {
			text := strings.ToLower(args["contract_text"].(string))
			if strings.TrimSpace(text) == "" {
				return nil, tool.NewToolError("extract_contract_clauses", "contract_text is empty", tool.CodeInvalidArguments)
			}

			types := defaultClauseTypes
			if requested, ok := args["clause_types"].([]any); ok && len(requested) > 0 {
				types = types[:0:0]
				for _, r := range requested {
					if s, ok := r.(string); ok {
						types = append(types, s)
					}
				}
			}

			clauses := make([]map[string]any, 0, len(types))
			missing := []string{}
			for _, clauseType := range types {
				markers, known := clauseMarkers[clauseType]
				if !known {
					missing = append(missing, clauseType)
					continue
				}
				found := false
				matched := []string{}
				for _, marker := range markers {
					if strings.Contains(text, marker) {
						found = true
						matched = append(matched, marker)
					}
				}
				if found {
					clauses = append(clauses, map[string]any{
						"type":     clauseType,
						"markers":  matched,
						"risk":     clauseRisk(clauseType, text),
						"excerpt":  excerptAround(text, matched[0]),
					})
				} else {
					missing = append(missing, clauseType)
				}
			}

			return map[string]any{
				"clauses_found":   clauses,
				"clauses_missing": missing,
				"note":            "Heuristic extraction; review flagged sections manually.",
			}, nil
		},
	)
}

// clauseRisk flags the risk level for a detected clause.
func clauseRisk(clauseType, text string) string {
	switch clauseType {
	case "indemnification":
		if !strings.Contains(text, "cap") {
			return "medium"
		}
		return "low"
	case "ip_ownership":
		if !strings.Contains(text, "pre-existing") {
			return "high"
		}
		return "medium"
	case "termination":
		if !strings.Contains(text, "cure") {
			return "medium"
		}
		return "low"
	default:
		return "low"
	}
}

// excerptAround returns a short window of text around the first marker hit.
func excerptAround(text, marker string) string {
	idx := strings.Index(text, marker)
	if idx < 0 {
		return ""
	}
	start := idx - 60
	if start < 0 {
		start = 0
	}
	end := idx + len(marker) + 120
	if end > len(text) {
		end = len(text)
	}
	return strings.TrimSpace(text[start:end])
}

func ndaAnalysisTool() tool.Tool {
	return tool.NewFunctionTool(
		"analyze_nda",
		"Analyze NDA terms, identify one-sided provisions and risks",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"nda_text": map[string]any{
					"type":        "string",
					"description": "The NDA text to analyze",
				},
				"party_perspective": map[string]any{
					"type":        "string",
					"enum":        []string{"disclosing", "receiving", "mutual"},
					"description": "Which party's perspective to analyze from",
				},
			},
			"required": []string{"nda_text"},
		},
		func(_ context.Context, args map[string]any) (any, error) {
			text := strings.ToLower(args["nda_text"].(string))
			perspective, _ := args["party_perspective"].(string)
			if perspective == "" {
				perspective = "mutual"
			}

			findings := []map[string]string{}
			if !strings.Contains(text, "mutual") && perspective == "receiving" {
				findings = append(findings, map[string]string{
					"issue":    "one_sided_obligations",
					"severity": "high",
					"detail":   "Obligations appear to bind only the receiving party.",
				})
			}
			if !strings.Contains(text, "return") && !strings.Contains(text, "destroy") {
				findings = append(findings, map[string]string{
					"issue":    "no_return_or_destruction_clause",
					"severity": "medium",
					"detail":   "No obligation to return or destroy confidential material on termination.",
				})
			}
			if strings.Contains(text, "perpetual") || strings.Contains(text, "indefinite") {
				findings = append(findings, map[string]string{
					"issue":    "unlimited_duration",
					"severity": "medium",
					"detail":   "Confidentiality obligations survive indefinitely; 3-5 years is typical.",
				})
			}
			if !strings.Contains(text, "residual") && perspective == "receiving" {
				findings = append(findings, map[string]string{
					"issue":    "no_residuals_clause",
					"severity": "low",
					"detail":   "No residual knowledge carve-out for the receiving party.",
				})
			}

			return map[string]any{
				"party_perspective": perspective,
				"findings":          findings,
				"overall_risk":      overallSeverity(findings),
			}, nil
		},
	)
}

// regulationChecks maps a regulation to the provisions a compliant document
// should mention.
var regulationChecks = map[string][]string{
	"GDPR":  {"lawful basis", "data subject", "erasure", "data protection officer", "cross-border"},
	"CCPA":  {"opt-out", "sale of personal information", "consumer rights", "non-discrimination"},
	"HIPAA": {"protected health information", "business associate", "minimum necessary", "safeguards"},
}

func complianceCheckTool() tool.Tool {
	return tool.NewFunctionTool(
		"check_compliance",
		"Check a document for regulatory compliance gaps",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"document_text": map[string]any{
					"type":        "string",
					"description": "Document to check",
				},
				"regulations": map[string]any{
					"type":        "array",
					"description": "Regulations to check against (GDPR, CCPA, HIPAA)",
				},
				"document_type": map[string]any{
					"type":        "string",
					"description": "Type of document (privacy_policy, terms_of_service, dpa)",
				},
			},
			"required": []string{"document_text", "regulations"},
		},
		func(_ context.Context, args map[string]any) (any, error) {
			text := strings.ToLower(args["document_text"].(string))
			requested, _ := args["regulations"].([]any)
			if len(requested) == 0 {
				return nil, tool.NewToolError("check_compliance", "regulations must not be empty", tool.CodeInvalidArguments)
			}

			results := map[string]any{}
			for _, r := range requested {
				name := strings.ToUpper(strings.TrimSpace(toStr(r)))
				checks, known := regulationChecks[name]
				if !known {
					results[name] = map[string]any{"status": "unsupported"}
					continue
				}
				present := []string{}
				gaps := []string{}
				for _, provision := range checks {
					if strings.Contains(text, provision) {
						present = append(present, provision)
					} else {
						gaps = append(gaps, provision)
					}
				}
				status := "compliant"
				if len(gaps) > 0 {
					status = "gaps_found"
				}
				results[name] = map[string]any{
					"status":             status,
					"provisions_present": present,
					"provisions_missing": gaps,
				}
			}

			return map[string]any{
				"document_type": args["document_type"],
				"results":       results,
				"note":          "Keyword-level screening; consult counsel for a full compliance review.",
			}, nil
		},
	)
}

func contractCompareTool() tool.Tool {
	return tool.NewFunctionTool(
		"compare_contracts",
		"Compare two contract versions and identify clause-level differences",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"contract_a": map[string]any{
					"type":        "string",
					"description": "First contract text",
				},
				"contract_b": map[string]any{
					"type":        "string",
					"description": "Second contract text",
				},
			},
			"required": []string{"contract_a", "contract_b"},
		},
		func(_ context.Context, args map[string]any) (any, error) {
			a := strings.ToLower(args["contract_a"].(string))
			b := strings.ToLower(args["contract_b"].(string))

			onlyA := []string{}
			onlyB := []string{}
			both := []string{}
			for _, clauseType := range defaultClauseTypes {
				inA := containsAny(a, clauseMarkers[clauseType])
				inB := containsAny(b, clauseMarkers[clauseType])
				switch {
				case inA && inB:
					both = append(both, clauseType)
				case inA:
					onlyA = append(onlyA, clauseType)
				case inB:
					onlyB = append(onlyB, clauseType)
				}
			}

			return map[string]any{
				"clauses_in_both":   both,
				"only_in_contract_a": onlyA,
				"only_in_contract_b": onlyB,
				"note":              "Clause-level presence comparison; wording differences inside shared clauses are not diffed.",
			}, nil
		},
	)
}

func legalRiskTool() tool.Tool {
	return tool.NewFunctionTool(
		"assess_legal_risk",
		"Assess legal risk for a described situation or document",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"context": map[string]any{
					"type":        "string",
					"description": "Description of the legal situation or document",
				},
				"jurisdiction": map[string]any{
					"type":        "string",
					"description": "Primary jurisdiction (default United States)",
				},
			},
			"required": []string{"context"},
		},
		func(_ context.Context, args map[string]any) (any, error) {
			situation := strings.ToLower(args["context"].(string))
			jurisdiction, _ := args["jurisdiction"].(string)
			if jurisdiction == "" {
				jurisdiction = "United States"
			}

			categories := map[string][]string{
				"contractual": {"breach", "contract", "agreement", "obligation"},
				"regulatory":  {"gdpr", "hipaa", "ccpa", "regulat", "compliance"},
				"litigation":  {"lawsuit", "sue", "claim", "dispute", "damages"},
				"ip":          {"patent", "trademark", "copyright", "trade secret", "infringe"},
				"employment":  {"employee", "termination", "discrimination", "wage"},
			}

			assessed := map[string]string{}
			high := 0
			for category, markers := range categories {
				hits := 0
				for _, m := range markers {
					if strings.Contains(situation, m) {
						hits++
					}
				}
				switch {
				case hits >= 2:
					assessed[category] = "high"
					high++
				case hits == 1:
					assessed[category] = "medium"
				default:
					assessed[category] = "low"
				}
			}

			overall := "low"
			if high >= 2 {
				overall = "high"
			} else if high == 1 {
				overall = "medium"
			}

			return map[string]any{
				"jurisdiction": jurisdiction,
				"categories":   assessed,
				"overall_risk": overall,
				"note":         "Informational assessment, not legal advice.",
			}, nil
		},
	)
}

func overallSeverity(findings []map[string]string) string {
	overall := "low"
	for _, f := range findings {
		switch f["severity"] {
		case "high":
			return "high"
		case "medium":
			overall = "medium"
		}
	}
	return overall
}

func containsAny(text string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}

func toStr(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
