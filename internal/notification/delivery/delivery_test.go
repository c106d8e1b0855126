package delivery

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	apperrors "servicedesk/internal/common/errors"
	"servicedesk/internal/common/logger"
	"servicedesk/internal/directory"
	"servicedesk/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSES struct {
	inputs []*ses.SendEmailInput
	err    error
}

func (f *fakeSES) SendEmail(_ context.Context, in *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &ses.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

type fakeSNS struct {
	inputs []*sns.PublishInput
	err    error
}

func (f *fakeSNS) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &sns.PublishOutput{MessageId: aws.String("msg-1")}, nil
}

func contacts() *directory.Memory {
	d := directory.NewMemory()
	d.PutContact(models.Contact{RecipientID: "tenant-1", Name: "Alex", Email: "alex@example.com", Phone: "+15550100"})
	d.PutContact(models.Contact{RecipientID: "tenant-2", Name: "Sam"})
	return d
}

func TestEmailChannel_Deliver(t *testing.T) {
	fake := &fakeSES{}
	ch := NewEmailChannel(fake, contacts(), "noreply@example.com")

	require.NoError(t, ch.Deliver(context.Background(), "tenant-1", "Request updated", "It is in progress."))
	require.Len(t, fake.inputs, 1)

	in := fake.inputs[0]
	assert.Equal(t, "noreply@example.com", aws.ToString(in.Source))
	assert.Equal(t, []string{"alex@example.com"}, in.Destination.ToAddresses)
	assert.Equal(t, "Request updated", aws.ToString(in.Message.Subject.Data))
	assert.Equal(t, "It is in progress.", aws.ToString(in.Message.Body.Text.Data))
}

func TestEmailChannel_Errors(t *testing.T) {
	ctx := context.Background()

	ch := NewEmailChannel(&fakeSES{}, contacts(), "noreply@example.com")
	assert.Error(t, ch.Deliver(ctx, "tenant-2", "t", "b"), "no email on file")
	assert.ErrorIs(t, ch.Deliver(ctx, "ghost", "t", "b"), apperrors.ErrNotFound)

	failing := NewEmailChannel(&fakeSES{err: errors.New("throttled")}, contacts(), "noreply@example.com")
	err := failing.Deliver(ctx, "tenant-1", "t", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
}

func TestSMSChannel_Deliver(t *testing.T) {
	fake := &fakeSNS{}
	ch := NewSMSChannel(fake, contacts(), "SVCDESK")

	require.NoError(t, ch.Deliver(context.Background(), "tenant-1", "Request updated", "It is in progress."))
	require.Len(t, fake.inputs, 1)

	in := fake.inputs[0]
	assert.Equal(t, "+15550100", aws.ToString(in.PhoneNumber))
	assert.Equal(t, "Request updated: It is in progress.", aws.ToString(in.Message))
	assert.Equal(t, "Transactional", aws.ToString(in.MessageAttributes["AWS.SNS.SMS.SMSType"].StringValue))
	assert.Equal(t, "SVCDESK", aws.ToString(in.MessageAttributes["AWS.SNS.SMS.SenderID"].StringValue))

	assert.Error(t, ch.Deliver(context.Background(), "tenant-2", "t", "b"), "no phone on file")
}

func TestSMSText_Truncates(t *testing.T) {
	text := smsText("Title", strings.Repeat("x", 300))
	assert.Len(t, []rune(text), maxSMSLength)
	assert.True(t, strings.HasSuffix(text, "..."))
}

func newInbox(t *testing.T, size int) (*InboxChannel, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewInboxChannel(rdb, size), mr
}

func TestInboxChannel_NewestFirstAndCapped(t *testing.T) {
	ctx := context.Background()
	inbox, mr := newInbox(t, 3)
	inbox.now = func() time.Time { return time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC) }

	for _, title := range []string{"one", "two", "three", "four"} {
		require.NoError(t, inbox.Deliver(ctx, "tenant-1", title, "body "+title))
	}

	items, err := mr.List("inbox:tenant-1")
	require.NoError(t, err)
	assert.Len(t, items, 3)

	msgs, err := inbox.Inbox(ctx, "tenant-1", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "four", msgs[0].Title)
	assert.Equal(t, "two", msgs[2].Title)
	assert.NotEmpty(t, msgs[0].ID)

	limited, err := inbox.Inbox(ctx, "tenant-1", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestInboxChannel_RedisFailure(t *testing.T) {
	inbox, mr := newInbox(t, 10)
	mr.SetError("READONLY replica")

	assert.Error(t, inbox.Deliver(context.Background(), "tenant-1", "t", "b"))
}

type recordingChannel struct {
	calls int
	err   error
}

func (r *recordingChannel) Deliver(context.Context, string, string, string) error {
	r.calls++
	return r.err
}

func TestRouter_Send(t *testing.T) {
	ctx := context.Background()
	email := &recordingChannel{}
	sms := &recordingChannel{err: errors.New("carrier rejected")}

	router := NewRouter(logger.NewTestLogger(t)).
		Register(models.ChannelEmail, email).
		Register(models.ChannelSMS, sms)

	require.NoError(t, router.Send(ctx, "tenant-1", models.ChannelEmail, "t", "b"))
	assert.Equal(t, 1, email.calls)

	err := router.Send(ctx, "tenant-1", models.ChannelSMS, "t", "b")
	assert.Equal(t, apperrors.ErrCodeDeliveryFailed, apperrors.CodeOf(err))

	err = router.Send(ctx, "tenant-1", models.ChannelInApp, "t", "b")
	assert.Equal(t, apperrors.ErrCodeDeliveryFailed, apperrors.CodeOf(err))
}
