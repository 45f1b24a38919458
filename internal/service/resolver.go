package service

import "github.com/Duell10111/artemis-exam-agent/internal/model"

// FindExerciseByParticipation returns the first exercise of exam whose
// participations contain participationID.
func FindExerciseByParticipation(exam *model.StudentExam, participationID int64) (*model.Exercise, bool) {
	if exam == nil {
		return nil, false
	}
	for _, exercise := range exam.Exercises {
		if exercise == nil {
			continue
		}
		if participationOf(exercise, participationID) != nil {
			return exercise, true
		}
	}
	return nil, false
}

// FindParticipation returns the participation with participationID.
func FindParticipation(exam *model.StudentExam, participationID int64) (*model.Participation, bool) {
	exercise, ok := FindExerciseByParticipation(exam, participationID)
	if !ok {
		return nil, false
	}
	return participationOf(exercise, participationID), true
}

func participationOf(exercise *model.Exercise, participationID int64) *model.Participation {
	for _, p := range exercise.StudentParticipations {
		if p != nil && p.ID == participationID {
			return p
		}
	}
	return nil
}
