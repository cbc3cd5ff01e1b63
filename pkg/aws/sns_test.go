package aws

import (
	"context"
	"errors"
	"testing"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSNS struct {
	inputs []*sns.PublishInput
	err    error
}

func (f *fakeSNS) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.inputs = append(f.inputs, in)
	return &sns.PublishOutput{}, f.err
}

func TestSNSClient_Publish(t *testing.T) {
	fake := &fakeSNS{}
	c := &SNSClient{client: fake}

	err := c.PublishWithAttributes(context.Background(), "arn:aws:sns:eu-west-1:000000000000:inventory", []byte(`{"a":1}`),
		map[string]string{"event_type": "StockReserved"})
	require.NoError(t, err)

	require.Len(t, fake.inputs, 1)
	in := fake.inputs[0]
	assert.Equal(t, `{"a":1}`, sdkaws.ToString(in.Message))
	assert.Equal(t, "StockReserved", sdkaws.ToString(in.MessageAttributes["event_type"].StringValue))
}

func TestSNSClient_PublishErrors(t *testing.T) {
	c := &SNSClient{client: &fakeSNS{err: errors.New("denied")}}

	assert.EqualError(t, c.Publish(context.Background(), "", nil), "empty topicArn")
	err := c.Publish(context.Background(), "arn:topic", []byte("x"))
	assert.ErrorContains(t, err, "denied")
}
