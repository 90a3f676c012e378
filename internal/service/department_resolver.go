package service

import "strings"

// Canonical mentor departments a course can resolve to.
const (
	DeptQuantitativeScience   = "Quantitative Science"
	DeptBusinessStudies       = "Business Studies"
	DeptAccounting            = "Accounting"
	DeptLandscapeHorticulture = "Landscape & Horticulture"
	DeptGeneralStudies        = "General Studies"
)

type courseKey struct {
	key        string
	department string
}

// courseTable is ordered; substring and token strategies return the first key that hits.
// Bare "computer science" is not a key; it resolves through the token strategy.
var courseTable = []courseKey{
	{"diploma in computer science", DeptQuantitativeScience},
	{"diploma in science computer", DeptQuantitativeScience},
	{"science computer", DeptQuantitativeScience},
	{"cs", DeptQuantitativeScience},
	{"bcs", DeptQuantitativeScience},

	{"diploma in accounting", DeptAccounting},
	{"accounting", DeptAccounting},
	{"da", DeptAccounting},

	{"diploma in business studies", DeptBusinessStudies},
	{"business studies", DeptBusinessStudies},
	{"db", DeptBusinessStudies},
	{"business", DeptBusinessStudies},

	{"diploma in landscape", DeptLandscapeHorticulture},
	{"diploma in landscape and horticulture", DeptLandscapeHorticulture},
	{"diploma in landscape horticulture", DeptLandscapeHorticulture},
	{"landscape and horticulture", DeptLandscapeHorticulture},
	{"landscape horticulture", DeptLandscapeHorticulture},
	{"landscape", DeptLandscapeHorticulture},
	{"horticulture", DeptLandscapeHorticulture},
	{"lh", DeptLandscapeHorticulture},
	{"dlh", DeptLandscapeHorticulture},

	{"certificate in finance, accounting and business", DeptAccounting},
	{"certificate in finance, accountancy and business", DeptAccounting},
	{"cfab", DeptAccounting},
	{"finance", DeptAccounting},

	{"intensive english program", DeptGeneralStudies},
	{"intensive english programme", DeptGeneralStudies},
	{"english program", DeptGeneralStudies},
	{"english programme", DeptGeneralStudies},
	{"english", DeptGeneralStudies},
	{"iep", DeptGeneralStudies},

	{"quantitative science", DeptQuantitativeScience},
	{"general studies", DeptGeneralStudies},
	{"landscape & horticulture", DeptLandscapeHorticulture},
}

// resolveStrategy inspects a normalized course and returns a department on a hit.
type resolveStrategy func(course string) (string, bool)

var resolveStrategies = []resolveStrategy{
	exactCourse,
	substringCourse,
	tokenCourse,
}

// ResolveDepartment maps a free-text course name or code to its mentor department.
func ResolveDepartment(course string) (string, bool) {
	normalized := strings.ToLower(strings.TrimSpace(course))
	if normalized == "" {
		return "", false
	}
	for _, strategy := range resolveStrategies {
		if dept, ok := strategy(normalized); ok {
			return dept, true
		}
	}
	return "", false
}

func exactCourse(course string) (string, bool) {
	for _, entry := range courseTable {
		if entry.key == course {
			return entry.department, true
		}
	}
	return "", false
}

func substringCourse(course string) (string, bool) {
	for _, entry := range courseTable {
		if strings.Contains(course, entry.key) {
			return entry.department, true
		}
	}
	return "", false
}

// Tokens are whitespace separated on both sides.
func tokenCourse(course string) (string, bool) {
	for _, token := range strings.Fields(course) {
		for _, entry := range courseTable {
			for _, keyToken := range strings.Fields(entry.key) {
				if token == keyToken {
					return entry.department, true
				}
			}
		}
	}
	return "", false
}
