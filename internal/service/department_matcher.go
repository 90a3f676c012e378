package service

import "strings"

type departmentFamily struct {
	canonical string
	aliases   []string
}

var departmentFamilies = []departmentFamily{
	{"quantitative science", []string{"quantitative", "science", "computer science", "cs"}},
	{"business studies", []string{"business", "studies", "bs"}},
	{"accounting", []string{"accounting", "account", "acc"}},
	{"landscape & horticulture", []string{"landscape", "horticulture", "garden", "lh"}},
	{"general studies", []string{"general", "studies", "gs", "english"}},
}

type matchStrategy func(required, mentor string) bool

var matchStrategies = []matchStrategy{
	exactDepartment,
	substringDepartment,
	tokenOverlapDepartment,
	aliasDepartment,
}

// DepartmentsCompatible reports whether a mentor's department can supervise the required department.
func DepartmentsCompatible(required, mentorDept string) bool {
	r := strings.ToLower(strings.TrimSpace(required))
	m := strings.ToLower(strings.TrimSpace(mentorDept))
	if r == "" || m == "" {
		return false
	}
	for _, strategy := range matchStrategies {
		if strategy(r, m) {
			return true
		}
	}
	return false
}

func exactDepartment(required, mentor string) bool {
	return required == mentor
}

func substringDepartment(required, mentor string) bool {
	return strings.Contains(mentor, required) || strings.Contains(required, mentor)
}

func tokenOverlapDepartment(required, mentor string) bool {
	seen := make(map[string]struct{})
	for _, token := range strings.Fields(required) {
		seen[token] = struct{}{}
	}
	for _, token := range strings.Fields(mentor) {
		if _, ok := seen[token]; ok {
			return true
		}
	}
	return false
}

// aliasDepartment is decided by the first family whose canonical name equals either side.
func aliasDepartment(required, mentor string) bool {
	for _, family := range departmentFamilies {
		if required == family.canonical {
			return containsAlias(mentor, family.aliases)
		}
		if mentor == family.canonical {
			return containsAlias(required, family.aliases)
		}
	}
	return false
}

func containsAlias(s string, aliases []string) bool {
	for _, alias := range aliases {
		if strings.Contains(s, alias) {
			return true
		}
	}
	return false
}
