// Copyright (c) 2025, the replica-search contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package notifyqueue provisions and tears down the per-process SQS queue
// subscribed to the bucket-notification SNS topic.
package notifyqueue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"

	"github.com/getlantern/replica-search/internal/apperr"
)

// TopicARN is the fixed bucket-notification SNS topic this service
// subscribes to. See spec §6.
const TopicARN = "arn:aws:sns:ap-southeast-1:670960738222:replica-search-events"

const queueNamePrefix = "replica_search_queue"

// SQSAPI and SNSAPI are the narrow operation sets this package depends
// on, satisfied by *sqs.Client/*sns.Client and by fakes in tests.
type SQSAPI interface {
	CreateQueue(ctx context.Context, params *sqs.CreateQueueInput, optFns ...func(*sqs.Options)) (*sqs.CreateQueueOutput, error)
	SetQueueAttributes(ctx context.Context, params *sqs.SetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.SetQueueAttributesOutput, error)
	GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)
	DeleteQueue(ctx context.Context, params *sqs.DeleteQueueInput, optFns ...func(*sqs.Options)) (*sqs.DeleteQueueOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

type SNSAPI interface {
	Subscribe(ctx context.Context, params *sns.SubscribeInput, optFns ...func(*sns.Options)) (*sns.SubscribeOutput, error)
	Unsubscribe(ctx context.Context, params *sns.UnsubscribeInput, optFns ...func(*sns.Options)) (*sns.UnsubscribeOutput, error)
}

// Subscription is a scoped resource: it owns a queue and its subscription
// to TopicARN, and Close tears both down. Close must run on every exit
// path, including cancellation; a surviving queue is a leak.
type Subscription struct {
	sqsClient       SQSAPI
	snsClient       SNSAPI
	QueueURL        string
	queueARN        string
	subscriptionArn string
}

// Provision creates a new per-process queue named
// "replica_search_queue-<uuid>", attaches a policy granting TopicARN
// SQS:SendMessage and allowing wildcard SQS:ReceiveMessage, and subscribes
// the queue to TopicARN with protocol "sqs".
func Provision(ctx context.Context, sqsClient SQSAPI, snsClient SNSAPI) (*Subscription, error) {
	queueName := fmt.Sprintf("%s-%s", queueNamePrefix, uuid.New().String())

	createOut, err := sqsClient.CreateQueue(ctx, &sqs.CreateQueueInput{QueueName: aws.String(queueName)})
	if err != nil {
		return nil, apperr.Wrap(apperr.Network, "notifyqueue.Provision", err)
	}
	queueURL := aws.ToString(createOut.QueueUrl)

	attrsOut, err := sqsClient.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl:       aws.String(queueURL),
		AttributeNames: []sqstypes.QueueAttributeName{sqstypes.QueueAttributeNameQueueArn},
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.Network, "notifyqueue.Provision", err)
	}
	queueARN := attrsOut.Attributes["QueueArn"]

	policy, err := sendPolicy(queueARN)
	if err != nil {
		return nil, apperr.Wrap(apperr.Invalid, "notifyqueue.Provision", err)
	}
	if _, err := sqsClient.SetQueueAttributes(ctx, &sqs.SetQueueAttributesInput{
		QueueUrl:   aws.String(queueURL),
		Attributes: map[string]string{"Policy": policy},
	}); err != nil {
		// Fallback path: some environments reject a policy set immediately
		// after creation; retry once after the queue has settled.
		if _, err2 := sqsClient.SetQueueAttributes(ctx, &sqs.SetQueueAttributesInput{
			QueueUrl:   aws.String(queueURL),
			Attributes: map[string]string{"Policy": policy},
		}); err2 != nil {
			return nil, apperr.Wrap(apperr.Network, "notifyqueue.Provision", err2)
		}
	}

	subOut, err := snsClient.Subscribe(ctx, &sns.SubscribeInput{
		TopicArn: aws.String(TopicARN),
		Protocol: aws.String("sqs"),
		Endpoint: aws.String(queueARN),
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.Network, "notifyqueue.Provision", err)
	}

	return &Subscription{
		sqsClient:       sqsClient,
		snsClient:       snsClient,
		QueueURL:        queueURL,
		queueARN:        queueARN,
		subscriptionArn: aws.ToString(subOut.SubscriptionArn),
	}, nil
}

// Close unsubscribes and deletes the queue. It runs synchronously and is
// expected to be called on every shutdown path, cancelled or not.
func (s *Subscription) Close(ctx context.Context) error {
	var errs []error
	if s.subscriptionArn != "" {
		if _, err := s.snsClient.Unsubscribe(ctx, &sns.UnsubscribeInput{SubscriptionArn: aws.String(s.subscriptionArn)}); err != nil {
			errs = append(errs, err)
		}
	}
	if _, err := s.sqsClient.DeleteQueue(ctx, &sqs.DeleteQueueInput{QueueUrl: aws.String(s.QueueURL)}); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return apperr.Wrap(apperr.Network, "notifyqueue.Close", errs[0])
	}
	return nil
}

// Message is one received queue entry, identified by its body and the
// receipt handle needed to delete it.
type Message struct {
	Body          string
	ReceiptHandle string
}

// Receive long-polls for up to 20 seconds, returning up to 10 messages.
func (s *Subscription) Receive(ctx context.Context) ([]Message, error) {
	out, err := s.sqsClient.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(s.QueueURL),
		WaitTimeSeconds:     20,
		MaxNumberOfMessages: 10,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.Network, "notifyqueue.Receive", err)
	}
	msgs := make([]Message, len(out.Messages))
	for i, m := range out.Messages {
		msgs[i] = Message{Body: aws.ToString(m.Body), ReceiptHandle: aws.ToString(m.ReceiptHandle)}
	}
	return msgs, nil
}

// Delete removes a message by receipt handle. Callers delete only after
// successfully parsing a message (delete-after-parse), per spec §4.6/§9.
func (s *Subscription) Delete(ctx context.Context, receiptHandle string) error {
	_, err := s.sqsClient.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(s.QueueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return apperr.Wrap(apperr.Network, "notifyqueue.Delete", err)
	}
	return nil
}

// policyDocument mirrors the minimal IAM-style policy AWS expects on a
// queue's "Policy" attribute.
type policyDocument struct {
	Version   string            `json:"Version"`
	Statement []policyStatement `json:"Statement"`
}

type policyStatement struct {
	Sid       string         `json:"Sid"`
	Effect    string         `json:"Effect"`
	Principal string         `json:"Principal"`
	Action    string         `json:"Action"`
	Resource  string         `json:"Resource"`
	Condition map[string]any `json:"Condition,omitempty"`
}

func sendPolicy(queueARN string) (string, error) {
	doc := policyDocument{
		Version: "2012-10-17",
		Statement: []policyStatement{
			{
				Sid:       "AllowTopicSend",
				Effect:    "Allow",
				Principal: "*",
				Action:    "SQS:SendMessage",
				Resource:  queueARN,
				Condition: map[string]any{"ArnEquals": map[string]string{"aws:SourceArn": TopicARN}},
			},
			{
				Sid:       "AllowReceive",
				Effect:    "Allow",
				Principal: "*",
				Action:    "SQS:ReceiveMessage",
				Resource:  queueARN,
			},
		},
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
