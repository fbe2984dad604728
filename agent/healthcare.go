package agent

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/hupe1980/domainmesh/core"
	"github.com/hupe1980/domainmesh/model"
	"github.com/hupe1980/domainmesh/retrieval"
	"github.com/hupe1980/domainmesh/tool"
)

const healthcareInstructions = `You are a clinical decision-support assistant specialized in clinical documentation, coding and risk scores.

Guidelines:
1. Structure clinical information precisely and conservatively.
2. Flag missing inputs instead of guessing values.
3. Always note that outputs support, not replace, clinical judgment.
4. Treat patient data carefully and avoid repeating identifiers unnecessarily.`

// NewHealthcare builds the healthcare domain agent with its tool suite.
func NewHealthcare(client *model.Client, pipeline *retrieval.Pipeline, optFns ...func(o *Options)) *DomainAgent {
	registry := tool.NewRegistry()
	registry.MustRegister(HealthcareTools()...)
	if pipeline != nil {
		registry.MustRegister(NewKnowledgeSearchTool(pipeline, 5))
	}
	return New(core.AgentHealthcare,
		"Clinical decision-support assistant for documentation, coding and risk scores",
		healthcareInstructions, client, registry, optFns...)
}

// HealthcareTools returns the healthcare tool suite.
func HealthcareTools() []tool.Tool {
	return []tool.Tool{
		clinicalNoteTool(),
		icdCodesTool(),
		drugInteractionsTool(),
		clinicalScoresTool(),
		patientDataTool(),
	}
}

var sectionHeaders = map[string][]string{
	"chief_complaint":  {"chief complaint", "cc:"},
	"history":          {"history of present illness", "hpi", "history:"},
	"medications":      {"medications", "meds:"},
	"allergies":        {"allergies", "nkda"},
	"vitals":           {"vital signs", "vitals", "bp ", "hr "},
	"assessment":       {"assessment", "impression"},
	"plan":             {"plan"},
}

func clinicalNoteTool() tool.Tool {
	return tool.NewFunctionTool(
		"parse_clinical_note",
		"Parse unstructured clinical notes into a standardized structure",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"clinical_text": map[string]any{
					"type":        "string",
					"description": "The clinical note text to parse",
				},
				"note_type": map[string]any{
					"type":        "string",
					"enum":        []string{"progress_note", "h_and_p", "discharge_summary", "consult", "operative"},
					"description": "Type of clinical note",
				},
			},
			"required": []string{"clinical_text"},
		},
		func(_ context.Context, args map[string]any) (any, error) {
			text := strings.ToLower(args["clinical_text"].(string))
			if strings.TrimSpace(text) == "" {
				return nil, tool.NewToolError("parse_clinical_note", "clinical_text is empty", tool.CodeInvalidArguments)
			}
			noteType, _ := args["note_type"].(string)
			if noteType == "" {
				noteType = "progress_note"
			}

			present := []string{}
			missing := []string{}
			names := make([]string, 0, len(sectionHeaders))
			for name := range sectionHeaders {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				if containsAny(text, sectionHeaders[name]) {
					present = append(present, name)
				} else {
					missing = append(missing, name)
				}
			}

			return map[string]any{
				"note_type":        noteType,
				"sections_present": present,
				"sections_missing": missing,
				"word_count":       len(strings.Fields(text)),
			}, nil
		},
	)
}

// icdHints maps clinical phrases to ICD-10 code suggestions.
var icdHints = map[string]map[string]string{
	"atrial fibrillation": {"code": "I48.91", "description": "Unspecified atrial fibrillation"},
	"hypertension":        {"code": "I10", "description": "Essential (primary) hypertension"},
	"diabetes":            {"code": "E11.9", "description": "Type 2 diabetes mellitus without complications"},
	"pneumonia":           {"code": "J18.9", "description": "Pneumonia, unspecified organism"},
	"heart failure":       {"code": "I50.9", "description": "Heart failure, unspecified"},
	"copd":                {"code": "J44.9", "description": "Chronic obstructive pulmonary disease, unspecified"},
	"stroke":              {"code": "I63.9", "description": "Cerebral infarction, unspecified"},
	"chest pain":          {"code": "R07.9", "description": "Chest pain, unspecified"},
	"sepsis":              {"code": "A41.9", "description": "Sepsis, unspecified organism"},
	"anemia":              {"code": "D64.9", "description": "Anemia, unspecified"},
}

func icdCodesTool() tool.Tool {
	return tool.NewFunctionTool(
		"suggest_icd_codes",
		"Suggest ICD-10 diagnosis codes based on clinical documentation",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"clinical_text": map[string]any{
					"type":        "string",
					"description": "Clinical documentation to analyze",
				},
				"max_suggestions": map[string]any{
					"type":        "integer",
					"description": "Maximum number of suggestions (default 10)",
				},
			},
			"required": []string{"clinical_text"},
		},
		func(_ context.Context, args map[string]any) (any, error) {
			text := strings.ToLower(args["clinical_text"].(string))
			limit := int(floatArg(args, "max_suggestions", 10))
			if limit < 1 {
				limit = 1
			}

			phrases := make([]string, 0, len(icdHints))
			for phrase := range icdHints {
				phrases = append(phrases, phrase)
			}
			sort.Strings(phrases)

			suggestions := []map[string]string{}
			for _, phrase := range phrases {
				if len(suggestions) == limit {
					break
				}
				if strings.Contains(text, phrase) {
					hint := icdHints[phrase]
					suggestions = append(suggestions, map[string]string{
						"code":        hint["code"],
						"description": hint["description"],
						"evidence":    phrase,
					})
				}
			}

			return map[string]any{
				"suggestions": suggestions,
				"note":        "Verify codes against full documentation before billing.",
			}, nil
		},
	)
}

// knownInteractions records significant pairwise drug interactions.
var knownInteractions = []struct {
	a, b, severity, effect string
}{
	{"warfarin", "aspirin", "major", "Increased bleeding risk"},
	{"warfarin", "ibuprofen", "major", "Increased bleeding risk"},
	{"warfarin", "amiodarone", "major", "Potentiates anticoagulation; INR rises"},
	{"lisinopril", "spironolactone", "moderate", "Risk of hyperkalemia"},
	{"lisinopril", "ibuprofen", "moderate", "Reduced antihypertensive effect, renal strain"},
	{"simvastatin", "amiodarone", "major", "Increased myopathy risk; limit simvastatin dose"},
	{"metformin", "contrast dye", "moderate", "Risk of lactic acidosis around imaging"},
	{"ssri", "tramadol", "major", "Serotonin syndrome risk"},
	{"digoxin", "amiodarone", "major", "Digoxin toxicity; reduce digoxin dose"},
}

func drugInteractionsTool() tool.Tool {
	return tool.NewFunctionTool(
		"check_drug_interactions",
		"Check a medication list for potential drug-drug interactions",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"medications": map[string]any{
					"type":        "array",
					"description": "List of medications to check",
				},
			},
			"required": []string{"medications"},
		},
		func(_ context.Context, args map[string]any) (any, error) {
			raw, _ := args["medications"].([]any)
			if len(raw) < 2 {
				return nil, tool.NewToolError("check_drug_interactions", "medications must list at least two drugs", tool.CodeInvalidArguments)
			}

			meds := make([]string, 0, len(raw))
			for _, m := range raw {
				if s := strings.ToLower(strings.TrimSpace(toStr(m))); s != "" {
					meds = append(meds, s)
				}
			}

			has := func(name string) bool {
				for _, m := range meds {
					if strings.Contains(m, name) {
						return true
					}
				}
				return false
			}

			interactions := []map[string]string{}
			for _, known := range knownInteractions {
				if has(known.a) && has(known.b) {
					interactions = append(interactions, map[string]string{
						"pair":     known.a + " + " + known.b,
						"severity": known.severity,
						"effect":   known.effect,
					})
				}
			}

			return map[string]any{
				"medications_checked": meds,
				"interactions":        interactions,
				"note":                "Checked against a built-in interaction table; consult a pharmacist for a complete review.",
			}, nil
		},
	)
}

func clinicalScoresTool() tool.Tool {
	return tool.NewFunctionTool(
		"calculate_clinical_scores",
		"Calculate clinical risk scores (cha2ds2_vasc, wells_dvt, news2)",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"score_type": map[string]any{
					"type":        "string",
					"enum":        []string{"cha2ds2_vasc", "wells_dvt", "news2"},
					"description": "Type of clinical score to calculate",
				},
				"parameters": map[string]any{
					"type":        "object",
					"description": "Score-specific parameters",
				},
			},
			"required": []string{"score_type", "parameters"},
		},
		func(_ context.Context, args map[string]any) (any, error) {
			scoreType := args["score_type"].(string)
			params, _ := args["parameters"].(map[string]any)

			switch scoreType {
			case "cha2ds2_vasc":
				return calcCHA2DS2VASc(params)
			case "wells_dvt":
				return calcWellsDVT(params)
			case "news2":
				return calcNEWS2(params)
			default:
				return nil, tool.NewToolError("calculate_clinical_scores",
					fmt.Sprintf("score type %q is not supported", scoreType), tool.CodeInvalidArguments)
			}
		},
	)
}

// calcCHA2DS2VASc computes stroke risk in atrial fibrillation. Age is the
// only mandatory input; boolean factors default to absent.
func calcCHA2DS2VASc(params map[string]any) (any, error) {
	age, ok := toFloat(params["age"])
	if !ok {
		return nil, tool.NewToolError("calculate_clinical_scores", "cha2ds2_vasc requires parameters.age", tool.CodeInvalidArguments)
	}

	score := 0
	breakdown := []string{}
	addIf := func(cond bool, points int, label string) {
		if cond {
			score += points
			breakdown = append(breakdown, fmt.Sprintf("%s: +%d", label, points))
		}
	}

	addIf(boolParam(params, "chf"), 1, "CHF/LV dysfunction")
	addIf(boolParam(params, "hypertension"), 1, "Hypertension")
	switch {
	case age >= 75:
		score += 2
		breakdown = append(breakdown, "Age >=75: +2")
	case age >= 65:
		score++
		breakdown = append(breakdown, "Age 65-74: +1")
	}
	addIf(boolParam(params, "diabetes"), 1, "Diabetes")
	addIf(boolParam(params, "stroke_tia"), 2, "Prior stroke/TIA")
	addIf(boolParam(params, "vascular_disease"), 1, "Vascular disease")
	addIf(boolParam(params, "female"), 1, "Female sex")

	riskTable := []string{"0%", "1.3%", "2.2%", "3.2%", "4.0%", "6.7%", "9.8%", "9.6%", "12.5%", "15.2%"}
	annualRisk := ">15%"
	if score < len(riskTable) {
		annualRisk = riskTable[score]
	}

	recommendation := "No anticoagulation needed"
	if score >= 2 {
		recommendation = "Anticoagulation recommended"
	} else if score == 1 {
		recommendation = "Consider anticoagulation"
	}

	return map[string]any{
		"score_type":         "cha2ds2_vasc",
		"score":              score,
		"breakdown":          breakdown,
		"annual_stroke_risk": annualRisk,
		"recommendation":     recommendation,
		"note":               "Clinical decision support only; weigh bleeding risk (HAS-BLED).",
	}, nil
}

// wellsDVTCriteria maps Wells input flags to their point values.
var wellsDVTCriteria = []struct {
	param, label string
	points       int
}{
	{"active_cancer", "Active cancer", 1},
	{"paralysis_or_immobilization", "Paralysis or recent immobilization", 1},
	{"bedridden_3days", "Recently bedridden >3 days or major surgery", 1},
	{"localized_tenderness", "Localized deep vein tenderness", 1},
	{"entire_leg_swollen", "Entire leg swollen", 1},
	{"calf_swelling_3cm", "Calf swelling >3 cm", 1},
	{"pitting_edema", "Pitting edema confined to symptomatic leg", 1},
	{"collateral_veins", "Collateral superficial veins", 1},
	{"previous_dvt", "Previously documented DVT", 1},
	{"alternative_diagnosis_likely", "Alternative diagnosis at least as likely", -2},
}

func calcWellsDVT(params map[string]any) (any, error) {
	if len(params) == 0 {
		return nil, tool.NewToolError("calculate_clinical_scores", "wells_dvt requires at least one criterion parameter", tool.CodeInvalidArguments)
	}

	score := 0
	breakdown := []string{}
	for _, c := range wellsDVTCriteria {
		if boolParam(params, c.param) {
			score += c.points
			breakdown = append(breakdown, fmt.Sprintf("%s: %+d", c.label, c.points))
		}
	}

	probability := "low"
	prevalence := "5%"
	workup := "D-dimer; ultrasound only if positive"
	switch {
	case score >= 3:
		probability = "high"
		prevalence = "53%"
		workup = "Proceed directly to ultrasound"
	case score >= 1:
		probability = "moderate"
		prevalence = "17%"
		workup = "D-dimer + ultrasound if positive"
	}

	return map[string]any{
		"score_type":     "wells_dvt",
		"score":          score,
		"breakdown":      breakdown,
		"probability":    probability,
		"dvt_prevalence": prevalence,
		"workup":         workup,
		"note":           "Clinical decision support only; use clinical judgment.",
	}, nil
}

func calcNEWS2(params map[string]any) (any, error) {
	required := []string{"respiratory_rate", "spo2", "systolic_bp", "heart_rate", "temperature_c"}
	values := map[string]float64{}
	for _, name := range required {
		v, ok := toFloat(params[name])
		if !ok {
			return nil, tool.NewToolError("calculate_clinical_scores",
				fmt.Sprintf("news2 requires parameters.%s", name), tool.CodeInvalidArguments)
		}
		values[name] = v
	}
	onOxygen := boolParam(params, "on_oxygen")
	alert := true
	if v, ok := params["alert"].(bool); ok {
		alert = v
	}

	score := 0
	maxSingle := 0
	add := func(points int) {
		score += points
		if points > maxSingle {
			maxSingle = points
		}
	}

	rr := values["respiratory_rate"]
	switch {
	case rr <= 8 || rr >= 25:
		add(3)
	case rr >= 21:
		add(2)
	case rr <= 11:
		add(1)
	}

	spo2 := values["spo2"]
	switch {
	case spo2 <= 91:
		add(3)
	case spo2 <= 93:
		add(2)
	case spo2 <= 95:
		add(1)
	}

	if onOxygen {
		add(2)
	}

	sbp := values["systolic_bp"]
	switch {
	case sbp <= 90 || sbp >= 220:
		add(3)
	case sbp <= 100:
		add(2)
	case sbp <= 110:
		add(1)
	}

	hr := values["heart_rate"]
	switch {
	case hr <= 40 || hr >= 131:
		add(3)
	case hr >= 111:
		add(2)
	case hr <= 50 || hr >= 91:
		add(1)
	}

	if !alert {
		add(3)
	}

	temp := values["temperature_c"]
	switch {
	case temp <= 35.0:
		add(3)
	case temp >= 39.1:
		add(2)
	case temp <= 36.0 || temp >= 38.1:
		add(1)
	}

	risk := "low"
	response := "Routine monitoring"
	switch {
	case score >= 7:
		risk = "high"
		response = "Emergency response"
	case score >= 5 || maxSingle == 3:
		risk = "medium"
		response = "Urgent review"
	case score >= 1:
		response = "Assessment by registered nurse"
	}

	return map[string]any{
		"score_type": "news2",
		"score":      score,
		"risk":       risk,
		"response":   response,
		"note":       "A single parameter scoring 3 escalates to medium risk.",
	}, nil
}

var (
	mrnPattern  = regexp.MustCompile(`(?i)\bmrn[:#\s]*\d+`)
	datePattern = regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{2,4}\b`)
)

func patientDataTool() tool.Tool {
	return tool.NewFunctionTool(
		"extract_patient_data",
		"Extract structured patient data elements from clinical documents, de-identifying by default",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"document_text": map[string]any{
					"type":        "string",
					"description": "Clinical document to extract from",
				},
				"deidentify": map[string]any{
					"type":        "boolean",
					"description": "Whether to de-identify PHI in output (default true)",
				},
			},
			"required": []string{"document_text"},
		},
		func(_ context.Context, args map[string]any) (any, error) {
			text := args["document_text"].(string)
			deidentify := true
			if v, ok := args["deidentify"].(bool); ok {
				deidentify = v
			}

			lower := strings.ToLower(text)
			medications := []string{}
			for _, med := range []string{"warfarin", "aspirin", "lisinopril", "metformin", "simvastatin", "amiodarone", "digoxin", "ibuprofen"} {
				if strings.Contains(lower, med) {
					medications = append(medications, med)
				}
			}
			diagnoses := []string{}
			for phrase := range icdHints {
				if strings.Contains(lower, phrase) {
					diagnoses = append(diagnoses, phrase)
				}
			}
			sort.Strings(diagnoses)

			phiRemoved := 0
			if deidentify {
				phiRemoved = len(mrnPattern.FindAllString(text, -1)) + len(datePattern.FindAllString(text, -1))
			}

			return map[string]any{
				"medications":  medications,
				"diagnoses":    diagnoses,
				"deidentified": deidentify,
				"phi_removed":  phiRemoved,
			}, nil
		},
	)
}

func boolParam(params map[string]any, name string) bool {
	v, _ := params[name].(bool)
	return v
}
