package commands

import (
	"encoding/json"

	"ocelot/contexts/evaluation/leaderboard-service/domain/entities"
	"ocelot/contexts/evaluation/leaderboard-service/ports"
	contractsv1 "ocelot/contracts/gen/events/v1"
)

func newAdmittedEnvelope(eventID string, submission entities.Submission) (ports.EventEnvelope, error) {
	payload, err := json.Marshal(contractsv1.SubmissionAdmittedData{
		SubmissionID: submission.SubmissionID,
		TeamID:       submission.TeamID,
		TestSetID:    submission.TestSetID,
		FileName:     submission.FileName,
	})
	if err != nil {
		return ports.EventEnvelope{}, err
	}
	return ports.EventEnvelope{
		EventID:          eventID,
		EventType:        SubmissionAdmittedEventType,
		OccurredAt:       submission.CreatedAt.UTC(),
		SourceService:    "leaderboard-service",
		TraceID:          eventID,
		SchemaVersion:    1,
		PartitionKeyPath: "submission_id",
		PartitionKey:     submission.SubmissionID,
		Data:             payload,
	}, nil
}
