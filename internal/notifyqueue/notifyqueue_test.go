// Copyright (c) 2025, the replica-search contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package notifyqueue

import (
	"context"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSQS struct {
	createdNames      []string
	setPolicyAttempts int
	setPolicyFailures int
	deletedQueueURL   string
	receiveMessages   []sqs.ReceiveMessageOutput
	receiveCall       int
	deletedHandles    []string
}

func (f *fakeSQS) CreateQueue(ctx context.Context, params *sqs.CreateQueueInput, optFns ...func(*sqs.Options)) (*sqs.CreateQueueOutput, error) {
	f.createdNames = append(f.createdNames, aws.ToString(params.QueueName))
	return &sqs.CreateQueueOutput{QueueUrl: aws.String("https://sqs.example/queue/" + aws.ToString(params.QueueName))}, nil
}

func (f *fakeSQS) GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error) {
	return &sqs.GetQueueAttributesOutput{Attributes: map[string]string{"QueueArn": "arn:aws:sqs:ap-southeast-1:000:queue"}}, nil
}

func (f *fakeSQS) SetQueueAttributes(ctx context.Context, params *sqs.SetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.SetQueueAttributesOutput, error) {
	f.setPolicyAttempts++
	if f.setPolicyAttempts <= f.setPolicyFailures {
		return nil, assert.AnError
	}
	return &sqs.SetQueueAttributesOutput{}, nil
}

func (f *fakeSQS) DeleteQueue(ctx context.Context, params *sqs.DeleteQueueInput, optFns ...func(*sqs.Options)) (*sqs.DeleteQueueOutput, error) {
	f.deletedQueueURL = aws.ToString(params.QueueUrl)
	return &sqs.DeleteQueueOutput{}, nil
}

func (f *fakeSQS) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	out := f.receiveMessages[f.receiveCall]
	f.receiveCall++
	return &out, nil
}

func (f *fakeSQS) DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.deletedHandles = append(f.deletedHandles, aws.ToString(params.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

type fakeSNS struct {
	subscribedTopic string
	subscribedProto string
	unsubscribedArn string
}

func (f *fakeSNS) Subscribe(ctx context.Context, params *sns.SubscribeInput, optFns ...func(*sns.Options)) (*sns.SubscribeOutput, error) {
	f.subscribedTopic = aws.ToString(params.TopicArn)
	f.subscribedProto = aws.ToString(params.Protocol)
	return &sns.SubscribeOutput{SubscriptionArn: aws.String("arn:aws:sns:sub:1")}, nil
}

func (f *fakeSNS) Unsubscribe(ctx context.Context, params *sns.UnsubscribeInput, optFns ...func(*sns.Options)) (*sns.UnsubscribeOutput, error) {
	f.unsubscribedArn = aws.ToString(params.SubscriptionArn)
	return &sns.UnsubscribeOutput{}, nil
}

func TestProvisionCreatesQueueAndSubscribesToFixedTopic(t *testing.T) {
	t.Parallel()

	fsqs := &fakeSQS{}
	fsns := &fakeSNS{}

	sub, err := Provision(context.Background(), fsqs, fsns)
	require.NoError(t, err)

	require.Len(t, fsqs.createdNames, 1)
	assert.True(t, strings.HasPrefix(fsqs.createdNames[0], queueNamePrefix+"-"))
	assert.Equal(t, TopicARN, fsns.subscribedTopic)
	assert.Equal(t, "sqs", fsns.subscribedProto)
	assert.NotEmpty(t, sub.QueueURL)
}

func TestProvisionFallsBackToRetryingPolicySet(t *testing.T) {
	t.Parallel()

	fsqs := &fakeSQS{setPolicyFailures: 1}
	fsns := &fakeSNS{}

	_, err := Provision(context.Background(), fsqs, fsns)
	require.NoError(t, err)
	assert.Equal(t, 2, fsqs.setPolicyAttempts)
}

func TestCloseUnsubscribesAndDeletesQueue(t *testing.T) {
	t.Parallel()

	fsqs := &fakeSQS{}
	fsns := &fakeSNS{}
	sub, err := Provision(context.Background(), fsqs, fsns)
	require.NoError(t, err)

	require.NoError(t, sub.Close(context.Background()))
	assert.Equal(t, sub.QueueURL, fsqs.deletedQueueURL)
	assert.Equal(t, "arn:aws:sns:sub:1", fsns.unsubscribedArn)
}

func TestReceiveAndDelete(t *testing.T) {
	t.Parallel()

	fsqs := &fakeSQS{receiveMessages: []sqs.ReceiveMessageOutput{
		{Messages: []sqstypes.Message{{Body: aws.String(`{"Message":"{}"}`), ReceiptHandle: aws.String("r1")}}},
	}}
	fsns := &fakeSNS{}
	sub, err := Provision(context.Background(), fsqs, fsns)
	require.NoError(t, err)

	msgs, err := sub.Receive(context.Background())
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "r1", msgs[0].ReceiptHandle)

	require.NoError(t, sub.Delete(context.Background(), msgs[0].ReceiptHandle))
	assert.Equal(t, []string{"r1"}, fsqs.deletedHandles)
}
