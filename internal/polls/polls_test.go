package polls

import (
	"testing"
	"time"
)

func TestCreateValidatesWindow(t *testing.T) {
	s := &Service{}
	now := time.Now()
	_, err := s.Create(nil, CreateInput{
		Type:    "election",
		StartAt: now,
		EndAt:   now.Add(-time.Hour),
		Options: []string{"A", "B"},
	})
	if err != ErrInvalidWindow {
		t.Fatalf("expected ErrInvalidWindow, got %v", err)
	}
}

func TestCreateValidatesOptionCount(t *testing.T) {
	s := &Service{}
	now := time.Now()
	_, err := s.Create(nil, CreateInput{
		Type:    "election",
		StartAt: now,
		EndAt:   now.Add(time.Hour),
		Options: []string{"A"},
	})
	if err != ErrNotEnoughOptions {
		t.Fatalf("expected ErrNotEnoughOptions, got %v", err)
	}
}

func TestCreateValidatesQuestionCount(t *testing.T) {
	s := &Service{}
	now := time.Now()
	_, err := s.Create(nil, CreateInput{
		Type:    "survey",
		StartAt: now,
		EndAt:   now.Add(time.Hour),
	})
	if err != ErrNotEnoughQuestions {
		t.Fatalf("expected ErrNotEnoughQuestions, got %v", err)
	}
}
