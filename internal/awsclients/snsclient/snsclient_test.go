package snsclient_test

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/outofoffice3/aws-samples/hermes/internal/awsclients/snsclient"
	"github.com/stretchr/testify/assert"
)

func TestNewSnsClient(t *testing.T) {
	tests := []struct {
		name    string
		region  string
		wantErr bool
	}{
		{"valid region", "us-east-1", false},
		{"invalid region", "invalid-region", true},
		{"empty region", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := snsclient.NewSnsClient(aws.Config{}, tt.region)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, c)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.region, c.GetRegion())
		})
	}
}
