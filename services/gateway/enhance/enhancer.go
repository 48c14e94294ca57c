// Copyright (C) 2026 CareMesh AI (dev@caremesh.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package enhance derives intent labels, action buttons, and citations for
// assistant replies.
//
// All label text is looked up from per-locale tables with English as the
// fallback for any unsupported locale tag. Classification is keyword-based
// and deterministic; no model call is involved.
package enhance

import "strings"

const (
	careLineHref   = "tel:+1-888-555-0142"
	schedulingHref = "https://caremesh.ai/appointments"
	programHref    = "https://caremesh.ai/patient-program"
)

// Intent labels produced by ClassifyIntent.
const (
	IntentSymptoms   = "symptoms"
	IntentScreening  = "screening"
	IntentScheduling = "scheduling"
	IntentCosts      = "costs"
	IntentSupport    = "support"
	IntentWayfinding = "wayfinding"
	IntentGlossary   = "glossary"
	IntentUnknown    = "unknown"
)

// ActionButton is a follow-up action attached to a reply.
type ActionButton struct {
	Type  string
	Label string
	Href  string
}

// Citation is a source reference attached to a reply.
type Citation struct {
	Title string
	URL   string
}

// intentCategories is the ordered priority list for classification. Symptom
// and disease terms come first so a message mentioning both "appointment"
// and "pain" classifies as symptoms, not scheduling.
var intentCategories = []struct {
	label    string
	keywords []string
}{
	{IntentSymptoms, []string{"pain", "headache", "symptom", "ache", "fever", "nausea", "swelling", "bleeding", "lump", "cancer", "tumor", "disease", "hurt", "dizzy"}},
	{IntentScreening, []string{"screen", "test", "check", "exam"}},
	{IntentScheduling, []string{"appointment", "schedule", "book"}},
	{IntentCosts, []string{"cost", "price", "insurance", "pay"}},
	{IntentSupport, []string{"support", "help", "group"}},
	{IntentWayfinding, []string{"location", "address", "direction", "where"}},
	{IntentGlossary, []string{"meaning", "definition", "explain"}},
}

// schedulingKeywords and resourceKeywords gate the optional action buttons.
// They carry terms across all supported locales.
var (
	schedulingKeywords = []string{"appointment", "schedule", "consulta", "cita", "موعد", "预约", "agendar"}
	resourceKeywords   = []string{"resource", "information", "recurso", "información", "مورد", "معلومات", "资源", "信息"}
)

var callLabels = map[string]string{
	"en": "Call CareMesh Now",
	"es": "Llamar a CareMesh",
	"ar": "اتصل بـ CareMesh",
	"zh": "致电CareMesh",
	"pt": "Ligar para CareMesh",
}

var scheduleLabels = map[string]string{
	"en": "Schedule Online",
	"es": "Agendar en Línea",
	"ar": "حجز موعد عبر الإنترنت",
	"zh": "在线预约",
	"pt": "Agendar Online",
}

var resourceLabels = map[string]string{
	"en": "View Resources",
	"es": "Ver Recursos",
	"ar": "عرض الموارد",
	"zh": "查看资源",
	"pt": "Ver Recursos",
}

var citationTitles = map[string]string{
	"en": "CareMesh Patient Support Program",
	"es": "Programa de Apoyo al Paciente CareMesh",
	"ar": "برنامج CareMesh لدعم المرضى",
	"zh": "CareMesh患者支持项目",
	"pt": "Programa de Apoio ao Paciente CareMesh",
}

var apologyMessages = map[string]string{
	"en": "I apologize, but I encountered an issue processing your request. Please try again or call CareMesh directly for assistance.",
	"es": "Me disculpo, pero encontré un problema procesando su solicitud. Por favor intente nuevamente o llame a CareMesh directamente para asistencia.",
	"ar": "أعتذر، ولكنني واجهت مشكلة في معالجة طلبك. يرجى المحاولة مرة أخرى أو الاتصال بـ CareMesh مباشرة للحصول على المساعدة.",
	"zh": "抱歉，我在处理您的请求时遇到了问题。请重试或直接致电CareMesh寻求帮助。",
	"pt": "Peço desculpas, mas encontrei um problema ao processar sua solicitação. Tente novamente ou ligue diretamente para a CareMesh para obter assistência.",
}

// lookupLabel returns the locale's entry with English fallback.
func lookupLabel(table map[string]string, locale string) string {
	if label, ok := table[locale]; ok {
		return label
	}
	return table["en"]
}

// ClassifyIntent walks the priority list and returns the first category
// with a keyword hit, or "unknown".
func ClassifyIntent(text string) string {
	lower := strings.ToLower(text)
	for _, category := range intentCategories {
		for _, kw := range category.keywords {
			if strings.Contains(lower, kw) {
				return category.label
			}
		}
	}
	return IntentUnknown
}

// Actions derives the action buttons for a message: always a "call" action,
// plus "schedule" and "resource" when their keyword sets match.
func Actions(text, locale string) []ActionButton {
	lower := strings.ToLower(text)

	actions := []ActionButton{{
		Type:  "call",
		Label: lookupLabel(callLabels, locale),
		Href:  careLineHref,
	}}

	if containsAny(lower, schedulingKeywords) {
		actions = append(actions, ActionButton{
			Type:  "schedule",
			Label: lookupLabel(scheduleLabels, locale),
			Href:  schedulingHref,
		})
	}
	if containsAny(lower, resourceKeywords) {
		actions = append(actions, ActionButton{
			Type:  "resource",
			Label: lookupLabel(resourceLabels, locale),
			Href:  programHref,
		})
	}
	return actions
}

// Citations returns the fixed localized citation set.
func Citations(locale string) []Citation {
	return []Citation{{
		Title: lookupLabel(citationTitles, locale),
		URL:   programHref,
	}}
}

// ApologyMessage returns the localized generic apology for the fallback
// envelope.
func ApologyMessage(locale string) string {
	return lookupLabel(apologyMessages, locale)
}

// CallAction returns the single localized call action used on the fallback
// path.
func CallAction(locale string) ActionButton {
	return ActionButton{
		Type:  "call",
		Label: lookupLabel(callLabels, locale),
		Href:  careLineHref,
	}
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
