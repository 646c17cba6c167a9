package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	ciptypes "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
)

// CognitoAPI is the part of the Cognito client used for sign-in
type CognitoAPI interface {
	InitiateAuth(ctx context.Context, params *cip.InitiateAuthInput, optFns ...func(*cip.Options)) (*cip.InitiateAuthOutput, error)
}

// CognitoAuthenticator checks passwords against a Cognito user pool app client
type CognitoAuthenticator struct {
	client       CognitoAPI
	clientID     string
	clientSecret string
}

// NewCognitoAuthenticator creates an authenticator. clientSecret may be empty
// for app clients without a secret.
func NewCognitoAuthenticator(client CognitoAPI, clientID, clientSecret string) *CognitoAuthenticator {
	return &CognitoAuthenticator{
		client:       client,
		clientID:     clientID,
		clientSecret: clientSecret,
	}
}

// SecretHash computes the SECRET_HASH parameter for username
func SecretHash(username, clientID, clientSecret string) string {
	mac := hmac.New(sha256.New, []byte(clientSecret))
	mac.Write([]byte(username + clientID))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Authenticate runs the USER_PASSWORD_AUTH flow
func (c *CognitoAuthenticator) Authenticate(ctx context.Context, email, password string) error {
	params := map[string]string{
		"USERNAME": email,
		"PASSWORD": password,
	}
	if c.clientSecret != "" {
		params["SECRET_HASH"] = SecretHash(email, c.clientID, c.clientSecret)
	}

	out, err := c.client.InitiateAuth(ctx, &cip.InitiateAuthInput{
		AuthFlow:       ciptypes.AuthFlowTypeUserPasswordAuth,
		ClientId:       aws.String(c.clientID),
		AuthParameters: params,
	})
	if err != nil {
		return &AuthenticationFailedError{Message: cognitoMessage(err)}
	}
	if out.AuthenticationResult == nil {
		// a challenge such as NEW_PASSWORD_REQUIRED cannot be completed here
		return &AuthenticationFailedError{Message: "Additional verification required: " + string(out.ChallengeName)}
	}
	return nil
}

func cognitoMessage(err error) string {
	var (
		notAuthorized *ciptypes.NotAuthorizedException
		notFound      *ciptypes.UserNotFoundException
		notConfirmed  *ciptypes.UserNotConfirmedException
		tooMany       *ciptypes.TooManyRequestsException
	)
	switch {
	case errors.As(err, &notAuthorized), errors.As(err, &notFound):
		return "Incorrect email or password"
	case errors.As(err, &notConfirmed):
		return "Please confirm your email before signing in"
	case errors.As(err, &tooMany):
		return "Too many attempts, please try again later"
	}
	return err.Error()
}
