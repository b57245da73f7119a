package clinical

func sev(v float64) *float64 { return &v }

// DefaultCases returns the built-in cases used when no content file can be
// loaded. A fresh slice is returned on every call.
func DefaultCases() []CaseTemplate {
	return []CaseTemplate{
		{
			ID:            "case_infarto_01",
			Title:         "Dor torácica típica",
			Specialty:     "Cardiologia",
			Difficulty:    1,
			Triage:        2,
			Deterioration: &Deterioration{StableToUnstableSec: 30, UnstableToCriticalSec: 22, CriticalToDeadSec: 18},
			Patient:       Demographics{Name: "Carlos A.", Age: 54, Sex: "M"},
			ChiefComplaint: "Dor no peito há 40 minutos, pressão em aperto, irradiando para braço esquerdo.",
			History: []string{
				"Hipertensão. Tabagista (30 maços/ano).",
				"Náuseas e sudorese.",
				"Nega trauma.",
			},
			PhysicalFindings: []string{
				"Paciente ansioso, sudoreico.",
				"Ausculta cardíaca sem sopros evidentes.",
				"Pulmões sem estertores.",
			},
			Exams: map[ExamKey]string{
				"ecg":  "ECG: supra de ST em derivações inferiores (DII, DIII, aVF).",
				"labs": "Troponina: elevada. Hemograma sem alterações relevantes.",
				"xray": "RX tórax: sem sinais de congestão.",
			},
			Treatments: map[TreatmentKey]TreatmentEffect{
				"oxygen":  {Text: "Oxigênio suplementar (se necessário).", SeverityDelta: -0.05, DelaySec: 3},
				"aspirin": {Text: "AAS administrado.", SeverityDelta: -0.2, DelaySec: 5},
				"nitro":   {Text: "Nitrato sublingual (se não houver contraindicação).", SeverityDelta: -0.08, DelaySec: 4},
			},
			Correct: AnswerKey{
				Diagnosis:          "Infarto Agudo do Miocárdio (IAM)",
				RequiredExams:      []ExamKey{"ecg"},
				HelpfulExams:       []ExamKey{"labs"},
				RequiredTreatments: []TreatmentKey{"aspirin"},
			},
			InitialSeverity: sev(0.35),
			Education: Education{
				Summary: "Dor torácica típica exige ECG precoce e manejo de síndrome coronariana aguda.",
				KeyPoints: []string{
					"ECG em até 10 minutos em suspeita de SCA.",
					"AAS reduz mortalidade quando não há contraindicação.",
					"Atraso no reconhecimento aumenta risco de arritmia e choque.",
				},
			},
		},
		{
			ID:            "case_pneumonia_01",
			Title:         "Febre e dispneia",
			Specialty:     "Clínica Médica",
			Difficulty:    1,
			Triage:        3,
			Deterioration: &Deterioration{StableToUnstableSec: 45, UnstableToCriticalSec: 35, CriticalToDeadSec: 25},
			Patient:       Demographics{Name: "Mariana S.", Age: 37, Sex: "F"},
			ChiefComplaint: "Febre há 3 dias e falta de ar progressiva.",
			History: []string{
				"Tosse produtiva. Dor pleurítica leve.",
				"Sem comorbidades conhecidas.",
				"Sem alergias.",
			},
			PhysicalFindings: []string{
				"Taquipneia, uso discreto de musculatura acessória.",
				"Estertores em base direita.",
			},
			Exams: map[ExamKey]string{
				"xray": "RX tórax: consolidação em base direita compatível com pneumonia.",
				"labs": "Leucócitos: 16.000. PCR elevada.",
				"ecg":  "ECG: taquicardia sinusal.",
			},
			Treatments: map[TreatmentKey]TreatmentEffect{
				"oxygen":      {Text: "Oxigênio suplementar iniciado.", SeverityDelta: -0.08, DelaySec: 3},
				"antibiotics": {Text: "Antibiótico iniciado (esquema empírico).", SeverityDelta: -0.2, DelaySec: 8},
				"fluids":      {Text: "Hidratação venosa iniciada.", SeverityDelta: -0.05, DelaySec: 5},
			},
			Correct: AnswerKey{
				Diagnosis:          "Pneumonia Comunitária",
				RequiredExams:      []ExamKey{"xray"},
				HelpfulExams:       []ExamKey{"labs"},
				RequiredTreatments: []TreatmentKey{"antibiotics"},
			},
			InitialSeverity: sev(0.45),
			Education: Education{
				Summary: "Pneumonia com hipoxemia requer imagem e antibiótico precoce.",
				KeyPoints: []string{
					"RX tórax confirma padrão de consolidação.",
					"Antibiótico precoce reduz complicações.",
					"Hipoxemia exige O2 e reavaliação.",
				},
			},
		},
		{
			ID:            "case_anafilaxia_01",
			Title:         "Reação alérgica grave",
			Specialty:     "Emergência",
			Difficulty:    2,
			Triage:        1,
			Deterioration: &Deterioration{StableToUnstableSec: 18, UnstableToCriticalSec: 14, CriticalToDeadSec: 12},
			Patient:       Demographics{Name: "João P.", Age: 22, Sex: "M"},
			ChiefComplaint: "Inchaço no rosto, falta de ar e urticária após ingestão de amendoim.",
			History: []string{
				"História de alergia a amendoim na infância.",
				"Começou com prurido, evoluiu com chiado e tontura.",
			},
			PhysicalFindings: []string{
				"Urticária difusa e edema de lábios.",
				"Sibilância difusa. Hipotensão.",
			},
			Exams: map[ExamKey]string{
				"ecg":  "ECG: taquicardia sinusal.",
				"labs": "Gasometria: hipoxemia.",
				"xray": "RX tórax: sem alterações agudas.",
			},
			Treatments: map[TreatmentKey]TreatmentEffect{
				"epinephrine": {Text: "Adrenalina IM administrada.", SeverityDelta: -0.35, DelaySec: 2},
				"oxygen":      {Text: "Oxigênio suplementar iniciado.", SeverityDelta: -0.05, DelaySec: 3},
				"fluids":      {Text: "Volume venoso iniciado.", SeverityDelta: -0.1, DelaySec: 5},
			},
			Correct: AnswerKey{
				Diagnosis:          "Anafilaxia",
				RequiredTreatments: []TreatmentKey{"epinephrine"},
			},
			InitialSeverity: sev(0.6),
			Education: Education{
				Summary: "Anafilaxia é diagnóstico clínico e adrenalina IM é primeira linha.",
				KeyPoints: []string{
					"Não esperar exames para tratar.",
					"Adrenalina IM precoce é a intervenção que salva vidas.",
					"Hipotensão responde a volume e suporte.",
				},
			},
		},
	}
}
