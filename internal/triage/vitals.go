package triage

import (
	"fmt"
	"time"

	"clinic/visit-service/internal/models"
)

// AgeBucket selects which vital-sign thresholds apply. It is derived from the
// patient's birth date at evaluation time and never stored.
type AgeBucket string

const (
	BucketInfant     AgeBucket = "infant"     // 0-2 years
	BucketPreschool  AgeBucket = "preschool"  // 2-6 years
	BucketSchoolAge  AgeBucket = "school_age" // 6-12 years
	BucketAdolescent AgeBucket = "adolescent" // 12-18 years
	BucketAdult      AgeBucket = "adult"      // 18-65 years
	BucketElderly    AgeBucket = "elderly"    // 65+ years
)

// AgeYears is the patient's age in whole years at the given instant.
func AgeYears(birthDate, at time.Time) int {
	years := at.Year() - birthDate.Year()
	anniversary := time.Date(at.Year(), birthDate.Month(), birthDate.Day(), 0, 0, 0, 0, time.UTC)
	if anniversary.After(time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, time.UTC)) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}

func BucketFor(birthDate, at time.Time) AgeBucket {
	return bucketForAge(AgeYears(birthDate, at))
}

func bucketForAge(years int) AgeBucket {
	switch {
	case years < 2:
		return BucketInfant
	case years < 6:
		return BucketPreschool
	case years < 12:
		return BucketSchoolAge
	case years < 18:
		return BucketAdolescent
	case years < 65:
		return BucketAdult
	default:
		return BucketElderly
	}
}

// thresholdSet holds the inclusive normal ranges for one bucket. evaluateBP
// is false where blood pressure is not assessed (infants and preschoolers
// under three).
type thresholdSet struct {
	evaluateBP        bool
	sysLow, sysHigh   int
	diaLow, diaHigh   int
	hrLow, hrHigh     int
	tempLow, tempHigh float64
	spo2Min           int
}

var thresholds = map[AgeBucket]thresholdSet{
	BucketInfant:     {evaluateBP: false, hrLow: 100, hrHigh: 160, tempLow: 36.5, tempHigh: 37.8, spo2Min: 95},
	BucketPreschool:  {evaluateBP: true, sysLow: 85, sysHigh: 110, diaLow: 55, diaHigh: 75, hrLow: 90, hrHigh: 130, tempLow: 36.0, tempHigh: 37.5, spo2Min: 95},
	BucketSchoolAge:  {evaluateBP: true, sysLow: 90, sysHigh: 120, diaLow: 60, diaHigh: 80, hrLow: 70, hrHigh: 110, tempLow: 36.0, tempHigh: 37.5, spo2Min: 95},
	BucketAdolescent: {evaluateBP: true, sysLow: 90, sysHigh: 140, diaLow: 60, diaHigh: 90, hrLow: 60, hrHigh: 100, tempLow: 36.0, tempHigh: 37.5, spo2Min: 95},
	BucketAdult:      {evaluateBP: true, sysLow: 90, sysHigh: 140, diaLow: 60, diaHigh: 90, hrLow: 60, hrHigh: 100, tempLow: 36.0, tempHigh: 37.5, spo2Min: 95},
	BucketElderly:    {evaluateBP: true, sysLow: 90, sysHigh: 140, diaLow: 60, diaHigh: 90, hrLow: 50, hrHigh: 90, tempLow: 35.5, tempHigh: 37.0, spo2Min: 90},
}

var bucketLabels = map[AgeBucket]string{
	BucketInfant:     "infant",
	BucketPreschool:  "preschool",
	BucketSchoolAge:  "school age",
	BucketAdolescent: "adolescent",
	BucketAdult:      "adult",
	BucketElderly:    "elderly",
}

func thresholdsFor(bucket AgeBucket, ageYears int) thresholdSet {
	set := thresholds[bucket]
	if bucket == BucketPreschool && ageYears < 3 {
		set.evaluateBP = false
	}
	return set
}

// Findings returns a human-readable label for every reading outside the
// bucket's normal range. Absent readings are skipped. Findings are advisory:
// they feed the priority hint and never block triage completion.
func Findings(bucket AgeBucket, ageYears int, vitals models.VitalSigns) []string {
	set := thresholdsFor(bucket, ageYears)
	label := bucketLabels[bucket]

	var findings []string
	if set.evaluateBP {
		if vitals.SystolicBP != nil && (*vitals.SystolicBP < set.sysLow || *vitals.SystolicBP > set.sysHigh) {
			findings = append(findings, fmt.Sprintf("systolic pressure (%s: %d-%d mmHg)", label, set.sysLow, set.sysHigh))
		}
		if vitals.DiastolicBP != nil && (*vitals.DiastolicBP < set.diaLow || *vitals.DiastolicBP > set.diaHigh) {
			findings = append(findings, fmt.Sprintf("diastolic pressure (%s: %d-%d mmHg)", label, set.diaLow, set.diaHigh))
		}
	}
	if vitals.HeartRate != nil && (*vitals.HeartRate < set.hrLow || *vitals.HeartRate > set.hrHigh) {
		findings = append(findings, fmt.Sprintf("heart rate (%s: %d-%d bpm)", label, set.hrLow, set.hrHigh))
	}
	if vitals.Temperature != nil && (*vitals.Temperature < set.tempLow || *vitals.Temperature > set.tempHigh) {
		findings = append(findings, fmt.Sprintf("temperature (%s: %.1f-%.1f C)", label, set.tempLow, set.tempHigh))
	}
	if vitals.OxygenSaturation != nil && *vitals.OxygenSaturation < set.spo2Min {
		findings = append(findings, fmt.Sprintf("oxygen saturation (%s: below %d%%)", label, set.spo2Min))
	}
	return findings
}

// Evaluate computes findings for a patient directly from the birth date.
func Evaluate(birthDate, at time.Time, vitals models.VitalSigns) []string {
	years := AgeYears(birthDate, at)
	return Findings(bucketForAge(years), years, vitals)
}

// SuggestedPriority maps the number of abnormal findings to a priority hint.
// The nurse's explicit classification always takes precedence.
func SuggestedPriority(findings []string) string {
	switch {
	case len(findings) >= 3:
		return models.PriorityAlta
	case len(findings) >= 1:
		return models.PriorityMedia
	default:
		return models.PriorityBaja
	}
}
