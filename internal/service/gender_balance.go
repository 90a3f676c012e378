package service

import "github.com/noah-isme/mentorship-api/internal/models"

// PlanGenderSlots splits slots between genders so the mentor's active mentees approach parity.
// The result never sums to more than slots.
func PlanGenderSlots(male, female, slots int) (int, int) {
	if slots <= 0 {
		return 0, 0
	}

	targetTotal := male + female + slots
	targetMale := targetTotal / 2
	targetFemale := targetTotal / 2
	if targetTotal%2 == 1 {
		if male <= female {
			targetMale++
		} else {
			targetFemale++
		}
	}

	maleNeeded := max0(targetMale - male)
	femaleNeeded := max0(targetFemale - female)

	total := maleNeeded + femaleNeeded
	if total <= slots {
		return maleNeeded, femaleNeeded
	}

	scaledMale := maleNeeded * slots / total
	scaledFemale := femaleNeeded * slots / total
	if remaining := slots - scaledMale - scaledFemale; remaining > 0 {
		if maleNeeded >= femaleNeeded {
			scaledMale += remaining
		} else {
			scaledFemale += remaining
		}
	}
	return scaledMale, scaledFemale
}

// preferredGender is the gender the next single slot should go to.
func preferredGender(male, female int) models.Gender {
	if m, _ := PlanGenderSlots(male, female, 1); m > 0 {
		return models.GenderMale
	}
	return models.GenderFemale
}

func idealPlan(dist models.GenderDistribution, slots int) models.GenderPlan {
	m, f := PlanGenderSlots(dist.Male, dist.Female, slots)
	return models.GenderPlan{Male: m, Female: f}
}

func max0(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
