// Package huddlemeet wraps the external conferencing service. Media never
// flows through this module; sessions are opaque handles created on first
// join and terminated by the reaper or an explicit end-room action.
package huddlemeet

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/chimesdkmeetings"
	"github.com/aws/aws-sdk-go/service/chimesdkmeetings/chimesdkmeetingsiface"

	"github.com/huddle-live/huddle-go-utils/faults"
)

// Session is the external conferencing handle bound to a room.
type Session struct {
	MeetingID string
	RoomID    string
}

// Provider talks to the conferencing control plane.
type Provider struct {
	api         chimesdkmeetingsiface.ChimeSDKMeetingsAPI
	mediaRegion string
}

// New creates a Provider over the given conferencing API.
func New(api chimesdkmeetingsiface.ChimeSDKMeetingsAPI, mediaRegion string) *Provider {
	if mediaRegion == "" {
		mediaRegion = "us-east-1"
	}
	return &Provider{
		api:         api,
		mediaRegion: mediaRegion,
	}
}

// Build creates a Provider using default credentials.
func Build(mediaRegion string) *Provider {
	sess := session.Must(session.NewSession(aws.NewConfig()))
	return New(chimesdkmeetings.New(sess), mediaRegion)
}

// CreateSession creates a conferencing session for the room. The room id is
// the idempotency token, so double-creating a room's session is safe.
func (p *Provider) CreateSession(ctx context.Context, roomID, createdBy string) (*Session, error) {
	output, err := p.api.CreateMeetingWithContext(ctx, &chimesdkmeetings.CreateMeetingInput{
		ClientRequestToken: aws.String(roomID),
		ExternalMeetingId:  aws.String(roomID),
		MediaRegion:        aws.String(p.mediaRegion),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session for room %v: %w", roomID, err)
	}
	return &Session{
		MeetingID: aws.StringValue(output.Meeting.MeetingId),
		RoomID:    roomID,
	}, nil
}

// GetSession reports whether the external handle still resolves. A missing
// session is not an error; it is a cue for the caller to reconcile the
// directory.
func (p *Provider) GetSession(ctx context.Context, meetingID string) (bool, error) {
	_, err := p.api.GetMeetingWithContext(ctx, &chimesdkmeetings.GetMeetingInput{
		MeetingId: aws.String(meetingID),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get session %v: %w", meetingID, err)
	}
	return true, nil
}

// CountParticipants returns the number of attendees in the session.
func (p *Provider) CountParticipants(ctx context.Context, meetingID string) (int, error) {
	var (
		count int
		token *string
	)
	for {
		output, err := p.api.ListAttendeesWithContext(ctx, &chimesdkmeetings.ListAttendeesInput{
			MeetingId: aws.String(meetingID),
			NextToken: token,
		})
		if err != nil {
			// the session can vanish between the existence check and here
			if isNotFound(err) {
				return 0, faults.ExternalNotFound(meetingID)
			}
			return 0, fmt.Errorf("failed to list participants for session %v: %w", meetingID, err)
		}
		count += len(output.Attendees)
		if output.NextToken == nil {
			return count, nil
		}
		token = output.NextToken
	}
}

// Terminate ends the session. Termination is idempotent: a session that is
// already gone counts as terminated.
func (p *Provider) Terminate(ctx context.Context, meetingID string) error {
	_, err := p.api.DeleteMeetingWithContext(ctx, &chimesdkmeetings.DeleteMeetingInput{
		MeetingId: aws.String(meetingID),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to terminate session %v: %w", meetingID, err)
	}
	return nil
}

func isNotFound(err error) bool {
	var nf *chimesdkmeetings.NotFoundException
	if errors.As(err, &nf) {
		return true
	}
	var ae awserr.Error
	return errors.As(err, &ae) && ae.Code() == chimesdkmeetings.ErrCodeNotFoundException
}
