package entities

import (
	"sort"

	"github.com/zatekoja/facilitydirectory/pkg/utils"
)

// ServiceCategory groups canonical service ids
type ServiceCategory string

const (
	ServiceCategoryHealth   ServiceCategory = "health"
	ServiceCategoryBenefits ServiceCategory = "benefits"
	ServiceCategoryOther    ServiceCategory = "other"
)

// ServiceCovid19Vaccine is the detailed service whose path comes from the
// COVID-19 vaccine locator mapping.
const ServiceCovid19Vaccine = "covid19Vaccine"

var healthServices = []string{
	"audiology",
	"cardiology",
	"caregiverSupport",
	ServiceCovid19Vaccine,
	"dental",
	"dermatology",
	"emergencyCare",
	"gastroenterology",
	"gynecology",
	"mentalHealth",
	"nutrition",
	"ophthalmology",
	"optometry",
	"orthopedics",
	"podiatry",
	"primaryCare",
	"specialtyCare",
	"urgentCare",
	"urology",
	"womensHealth",
}

var benefitsServices = []string{
	"applyingForBenefits",
	"burialClaimAssistance",
	"disabilityClaimAssistance",
	"eBenefitsRegistrationAssistance",
	"educationAndCareerCounseling",
	"educationClaimAssistance",
	"familyMemberClaimAssistance",
	"homelessAssistance",
	"insuranceClaimAssistance",
	"integratedDisabilityEvaluationSystemAssistance",
	"pensions",
	"preDischargeClaimAssistance",
	"transitionAssistance",
	"updatingDirectDepositInformation",
	"vaHomeLoanAssistance",
	"vocationalRehabilitationAndEmploymentAssistance",
}

var otherServices = []string{
	"onlineScheduling",
}

// serviceAliases maps upstream spellings to canonical ids. Keys are in
// utils.NormalizeKey form; canonical ids are registered by init.
var serviceAliases = map[string]string{
	"covid19":                     ServiceCovid19Vaccine,
	"covid19vaccines":             ServiceCovid19Vaccine,
	"covidvaccine":                ServiceCovid19Vaccine,
	"dentalservices":              "dental",
	"emergency":                   "emergencyCare",
	"mentalhealthcare":            "mentalHealth",
	"primarycarehomeless":         "primaryCare",
	"eyecare":                     "optometry",
	"womenshealthcare":            "womensHealth",
	"womenveteranshealth":         "womensHealth",
	"nutritiondietetics":          "nutrition",
	"footandanklecare":            "podiatry",
	"hearingaids":                 "audiology",
	"heartcare":                   "cardiology",
	"skincare":                    "dermatology",
	"vocationalrehabilitation":    "vocationalRehabilitationAndEmploymentAssistance",
	"vre":                         "vocationalRehabilitationAndEmploymentAssistance",
	"homeloanassistance":          "vaHomeLoanAssistance",
	"directdeposit":               "updatingDirectDepositInformation",
	"ides":                        "integratedDisabilityEvaluationSystemAssistance",
	"bdd":                         "preDischargeClaimAssistance",
	"benefitsdeliveryatdischarge": "preDischargeClaimAssistance",
	"ebenefits":                   "eBenefitsRegistrationAssistance",
	"tap":                         "transitionAssistance",
}

var serviceCategories = map[string]ServiceCategory{}

func init() {
	register := func(category ServiceCategory, ids []string) {
		for _, id := range ids {
			serviceCategories[id] = category
			serviceAliases[utils.NormalizeKey(id)] = id
		}
	}
	register(ServiceCategoryHealth, healthServices)
	register(ServiceCategoryBenefits, benefitsServices)
	register(ServiceCategoryOther, otherServices)
}

// ResolveService maps an external service spelling to its canonical id.
// Lookup ignores case, spacing and punctuation.
func ResolveService(name string) (ServiceCategory, string, bool) {
	key := utils.NormalizeKey(name)
	if key == "" {
		return "", "", false
	}
	id, ok := serviceAliases[key]
	if !ok {
		return "", "", false
	}
	return serviceCategories[id], id, true
}

// CanonicalServices returns every canonical id of a category, sorted
func CanonicalServices(category ServiceCategory) []string {
	var out []string
	for id, c := range serviceCategories {
		if c == category {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// AddService files a canonical service id under its category, skipping
// duplicates. Unknown names are ignored and reported as false.
func (s *Services) AddService(name string) bool {
	category, id, ok := ResolveService(name)
	if !ok {
		return false
	}
	var list *[]string
	switch category {
	case ServiceCategoryHealth:
		list = &s.Health
	case ServiceCategoryBenefits:
		list = &s.Benefits
	default:
		list = &s.Other
	}
	for _, existing := range *list {
		if existing == id {
			return true
		}
	}
	*list = append(*list, id)
	return true
}
