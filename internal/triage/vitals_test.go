package triage

import (
	"strings"
	"testing"
	"time"

	"clinic/visit-service/internal/models"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func TestBucketForAge(t *testing.T) {
	cases := []struct {
		years  int
		bucket AgeBucket
	}{
		{0, BucketInfant},
		{1, BucketInfant},
		{2, BucketPreschool},
		{5, BucketPreschool},
		{6, BucketSchoolAge},
		{11, BucketSchoolAge},
		{12, BucketAdolescent},
		{17, BucketAdolescent},
		{18, BucketAdult},
		{64, BucketAdult},
		{65, BucketElderly},
		{90, BucketElderly},
	}
	for _, tt := range cases {
		if got := bucketForAge(tt.years); got != tt.bucket {
			t.Fatalf("bucketForAge(%d) = %s, want %s", tt.years, got, tt.bucket)
		}
	}
}

func TestAgeYears(t *testing.T) {
	at := time.Date(2025, time.March, 3, 10, 0, 0, 0, time.UTC)
	cases := []struct {
		birth time.Time
		want  int
	}{
		{time.Date(2000, time.March, 3, 0, 0, 0, 0, time.UTC), 25},
		{time.Date(2000, time.March, 4, 0, 0, 0, 0, time.UTC), 24},
		{time.Date(2024, time.December, 1, 0, 0, 0, 0, time.UTC), 0},
	}
	for _, tt := range cases {
		if got := AgeYears(tt.birth, at); got != tt.want {
			t.Fatalf("AgeYears(%v) = %d, want %d", tt.birth, got, tt.want)
		}
	}
}

func TestHeartRateByBucket(t *testing.T) {
	cases := []struct {
		bucket  AgeBucket
		age     int
		rate    int
		flagged bool
	}{
		{BucketElderly, 70, 55, false},
		{BucketElderly, 70, 45, true},
		{BucketElderly, 70, 95, true},
		{BucketAdult, 40, 55, true},
		{BucketAdult, 40, 45, true},
		{BucketAdult, 40, 72, false},
		{BucketInfant, 1, 110, false},
		{BucketInfant, 1, 90, true},
		{BucketSchoolAge, 8, 65, true},
		{BucketSchoolAge, 8, 70, false},
	}
	for _, tt := range cases {
		findings := Findings(tt.bucket, tt.age, models.VitalSigns{HeartRate: intPtr(tt.rate)})
		flagged := len(findings) > 0
		if flagged != tt.flagged {
			t.Fatalf("%s hr=%d: flagged=%v, want %v (%v)", tt.bucket, tt.rate, flagged, tt.flagged, findings)
		}
	}
}

func TestBloodPressureNotEvaluatedForYoungest(t *testing.T) {
	vitals := models.VitalSigns{SystolicBP: intPtr(200), DiastolicBP: intPtr(150)}

	if findings := Findings(BucketInfant, 1, vitals); len(findings) != 0 {
		t.Fatalf("infant BP must not be evaluated, got %v", findings)
	}
	if findings := Findings(BucketPreschool, 2, vitals); len(findings) != 0 {
		t.Fatalf("preschool under 3 BP must not be evaluated, got %v", findings)
	}
	if findings := Findings(BucketPreschool, 4, vitals); len(findings) != 2 {
		t.Fatalf("preschool 3+ BP must be evaluated, got %v", findings)
	}
}

func TestTemperatureRanges(t *testing.T) {
	cases := []struct {
		bucket  AgeBucket
		age     int
		temp    float64
		flagged bool
	}{
		{BucketInfant, 1, 37.7, false},
		{BucketInfant, 1, 36.3, true},
		{BucketAdult, 30, 37.6, true},
		{BucketAdult, 30, 37.4, false},
		{BucketElderly, 70, 37.4, true},
		{BucketElderly, 70, 35.6, false},
		{BucketElderly, 70, 35.4, true},
	}
	for _, tt := range cases {
		findings := Findings(tt.bucket, tt.age, models.VitalSigns{Temperature: floatPtr(tt.temp)})
		flagged := len(findings) > 0
		if flagged != tt.flagged {
			t.Fatalf("%s temp=%.1f: flagged=%v, want %v", tt.bucket, tt.temp, flagged, tt.flagged)
		}
	}
}

func TestOxygenSaturation(t *testing.T) {
	if findings := Findings(BucketAdult, 30, models.VitalSigns{OxygenSaturation: intPtr(94)}); len(findings) != 1 {
		t.Fatalf("adult SpO2 94 must be flagged, got %v", findings)
	}
	if findings := Findings(BucketElderly, 70, models.VitalSigns{OxygenSaturation: intPtr(92)}); len(findings) != 0 {
		t.Fatalf("elderly SpO2 92 must pass, got %v", findings)
	}
	if findings := Findings(BucketElderly, 70, models.VitalSigns{OxygenSaturation: intPtr(88)}); len(findings) != 1 {
		t.Fatalf("elderly SpO2 88 must be flagged, got %v", findings)
	}
}

func TestAbsentReadingsSkipped(t *testing.T) {
	if findings := Findings(BucketAdult, 30, models.VitalSigns{}); len(findings) != 0 {
		t.Fatalf("empty vitals must produce no findings, got %v", findings)
	}
}

func TestFindingsLabelsCarryRanges(t *testing.T) {
	findings := Findings(BucketSchoolAge, 8, models.VitalSigns{SystolicBP: intPtr(130)})
	if len(findings) != 1 {
		t.Fatalf("expected one finding, got %v", findings)
	}
	if !strings.Contains(findings[0], "90-120") {
		t.Fatalf("finding should name the range, got %q", findings[0])
	}
}

func TestSuggestedPriority(t *testing.T) {
	if got := SuggestedPriority(nil); got != models.PriorityBaja {
		t.Fatalf("no findings = baja, got %s", got)
	}
	if got := SuggestedPriority([]string{"a"}); got != models.PriorityMedia {
		t.Fatalf("one finding = media, got %s", got)
	}
	if got := SuggestedPriority([]string{"a", "b", "c"}); got != models.PriorityAlta {
		t.Fatalf("three findings = alta, got %s", got)
	}
}

func TestEvaluateUsesBirthDate(t *testing.T) {
	at := time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)
	elderlyBirth := time.Date(1950, time.May, 10, 0, 0, 0, 0, time.UTC)
	adultBirth := time.Date(1990, time.May, 10, 0, 0, 0, 0, time.UTC)
	vitals := models.VitalSigns{HeartRate: intPtr(55)}

	if findings := Evaluate(elderlyBirth, at, vitals); len(findings) != 0 {
		t.Fatalf("55 bpm is normal for elderly, got %v", findings)
	}
	if findings := Evaluate(adultBirth, at, vitals); len(findings) != 1 {
		t.Fatalf("55 bpm must be flagged for adult, got %v", findings)
	}
}
