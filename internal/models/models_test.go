package models

import (
	"testing"
	"time"
)

func TestAudienceRulesMatchGender(t *testing.T) {
	r := AudienceRules{Gender: GenderFemale}
	u := &User{Gender: GenderMale, BirthYear: 1990}
	if r.Match(u, time.Now()) {
		t.Fatalf("expected gender mismatch to fail eligibility")
	}
	u.Gender = GenderFemale
	if !r.Match(u, time.Now()) {
		t.Fatalf("expected matching gender to pass eligibility")
	}
}

func TestAudienceRulesMatchRegion(t *testing.T) {
	r := AudienceRules{Regions: []string{"GE-TB"}}
	u := &User{RegionCodes: []string{"GE-AJ"}, BirthYear: 1990}
	if r.Match(u, time.Now()) {
		t.Fatalf("expected region mismatch to fail eligibility")
	}
	u.RegionCodes = append(u.RegionCodes, "GE-TB")
	if !r.Match(u, time.Now()) {
		t.Fatalf("expected overlapping region to pass eligibility")
	}
}

func TestAudienceRulesMatchAgeBounds(t *testing.T) {
	min, max := 18, 65
	r := AudienceRules{MinAge: &min, MaxAge: &max}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tooYoung := &User{BirthYear: 2015}
	if r.Match(tooYoung, now) {
		t.Fatalf("expected under-minimum age to fail eligibility")
	}
	tooOld := &User{BirthYear: 1950}
	if r.Match(tooOld, now) {
		t.Fatalf("expected over-maximum age to fail eligibility")
	}
	inRange := &User{BirthYear: 2000}
	if !r.Match(inRange, now) {
		t.Fatalf("expected in-range age to pass eligibility")
	}
}

func TestAudienceRulesUnrestricted(t *testing.T) {
	r := AudienceRules{}
	u := &User{Gender: GenderMale, BirthYear: 1980, RegionCodes: nil}
	if !r.Match(u, time.Now()) {
		t.Fatalf("expected zero-value AudienceRules to match any user")
	}
}

func TestBucketBirthYear(t *testing.T) {
	cases := map[int]int{
		1990: 1990,
		1991: 1990,
		1999: 1990,
		2000: 2000,
		2003: 2000,
	}
	for in, want := range cases {
		if got := BucketBirthYear(in); got != want {
			t.Errorf("BucketBirthYear(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestEnrollmentSessionExpired(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := &EnrollmentSession{ExpiresAt: now.Add(-time.Minute)}
	if !s.Expired(now) {
		t.Fatalf("expected past ExpiresAt to report expired")
	}
	s.ExpiresAt = now.Add(time.Minute)
	if s.Expired(now) {
		t.Fatalf("expected future ExpiresAt to report not expired")
	}
}
