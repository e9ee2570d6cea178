// Package cognito implements the passwordless.Provider contract on top of
// AWS Cognito's USER_AUTH flow.
package cognito

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/aws/smithy-go"
	"github.com/pkg/errors"

	"github.com/jrsteele09/go-passwordless/passwordless"
)

var _ passwordless.Provider = (*Client)(nil)

// api is the slice of the Cognito SDK surface the client uses.
type api interface {
	SignUp(ctx context.Context, in *cognitoidentityprovider.SignUpInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.SignUpOutput, error)
	InitiateAuth(ctx context.Context, in *cognitoidentityprovider.InitiateAuthInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.InitiateAuthOutput, error)
	RespondToAuthChallenge(ctx context.Context, in *cognitoidentityprovider.RespondToAuthChallengeInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.RespondToAuthChallengeOutput, error)
	ConfirmSignUp(ctx context.Context, in *cognitoidentityprovider.ConfirmSignUpInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.ConfirmSignUpOutput, error)
	ResendConfirmationCode(ctx context.Context, in *cognitoidentityprovider.ResendConfirmationCodeInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.ResendConfirmationCodeOutput, error)
	UpdateUserAttributes(ctx context.Context, in *cognitoidentityprovider.UpdateUserAttributesInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.UpdateUserAttributesOutput, error)
}

// Client talks to a Cognito user pool app client (no client secret, USER_AUTH
// flow enabled).
type Client struct {
	api      api
	clientID string
}

// New loads the default AWS configuration for region and builds a Client.
func New(ctx context.Context, region, clientID string) (*Client, error) {
	if clientID == "" {
		return nil, errors.New("[cognito.New] clientID is required")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, errors.Wrap(err, "[cognito.New] LoadDefaultConfig")
	}
	return &Client{
		api:      cognitoidentityprovider.NewFromConfig(cfg),
		clientID: clientID,
	}, nil
}

// NewWithAPI builds a Client over an existing SDK client, for callers that
// configure the SDK themselves.
func NewWithAPI(a api, clientID string) *Client {
	return &Client{api: a, clientID: clientID}
}

func (c *Client) SignUp(ctx context.Context, in passwordless.SignUpInput) (passwordless.SignUpOutput, error) {
	out, err := c.api.SignUp(ctx, &cognitoidentityprovider.SignUpInput{
		ClientId:       aws.String(c.clientID),
		Username:       aws.String(in.Username),
		Password:       aws.String(in.TempPassword),
		UserAttributes: attributeList(in.Attributes),
	})
	if err != nil {
		return passwordless.SignUpOutput{}, translate(err)
	}

	result := passwordless.SignUpOutput{}
	if out.CodeDeliveryDetails != nil {
		result.CodeDelivered = true
		result.Destination = aws.ToString(out.CodeDeliveryDetails.Destination)
	}
	return result, nil
}

func (c *Client) InitiateAuth(ctx context.Context, username string) (passwordless.ChallengeOutput, error) {
	out, err := c.api.InitiateAuth(ctx, &cognitoidentityprovider.InitiateAuthInput{
		ClientId: aws.String(c.clientID),
		AuthFlow: types.AuthFlowTypeUserAuth,
		AuthParameters: map[string]string{
			"USERNAME": username,
		},
	})
	if err != nil {
		return passwordless.ChallengeOutput{}, translate(err)
	}
	return passwordless.ChallengeOutput{
		ChallengeName:       passwordless.ProviderChallenge(out.ChallengeName),
		Session:             aws.ToString(out.Session),
		ChallengeParameters: out.ChallengeParameters,
		Tokens:              tokens(out.AuthenticationResult),
	}, nil
}

func (c *Client) RespondToChallenge(ctx context.Context, in passwordless.RespondInput) (passwordless.ChallengeOutput, error) {
	out, err := c.api.RespondToAuthChallenge(ctx, &cognitoidentityprovider.RespondToAuthChallengeInput{
		ClientId:           aws.String(c.clientID),
		ChallengeName:      types.ChallengeNameType(in.ChallengeName),
		Session:            aws.String(in.Session),
		ChallengeResponses: in.Responses,
	})
	if err != nil {
		return passwordless.ChallengeOutput{}, translate(err)
	}
	return passwordless.ChallengeOutput{
		ChallengeName:       passwordless.ProviderChallenge(out.ChallengeName),
		Session:             aws.ToString(out.Session),
		ChallengeParameters: out.ChallengeParameters,
		Tokens:              tokens(out.AuthenticationResult),
	}, nil
}

func (c *Client) ConfirmSignUp(ctx context.Context, username, code string) error {
	_, err := c.api.ConfirmSignUp(ctx, &cognitoidentityprovider.ConfirmSignUpInput{
		ClientId:         aws.String(c.clientID),
		Username:         aws.String(username),
		ConfirmationCode: aws.String(code),
	})
	return translate(err)
}

func (c *Client) ResendConfirmationCode(ctx context.Context, username string) error {
	_, err := c.api.ResendConfirmationCode(ctx, &cognitoidentityprovider.ResendConfirmationCodeInput{
		ClientId: aws.String(c.clientID),
		Username: aws.String(username),
	})
	return translate(err)
}

func (c *Client) UpdateUserAttributes(ctx context.Context, accessToken string, attributes map[string]string) error {
	_, err := c.api.UpdateUserAttributes(ctx, &cognitoidentityprovider.UpdateUserAttributesInput{
		AccessToken:    aws.String(accessToken),
		UserAttributes: attributeList(attributes),
	})
	return translate(err)
}

func attributeList(attributes map[string]string) []types.AttributeType {
	if len(attributes) == 0 {
		return nil
	}
	list := make([]types.AttributeType, 0, len(attributes))
	for name, value := range attributes {
		list = append(list, types.AttributeType{
			Name:  aws.String(name),
			Value: aws.String(value),
		})
	}
	return list
}

func tokens(result *types.AuthenticationResultType) *passwordless.Tokens {
	if result == nil || aws.ToString(result.AccessToken) == "" {
		return nil
	}
	return &passwordless.Tokens{
		IDToken:      aws.ToString(result.IdToken),
		AccessToken:  aws.ToString(result.AccessToken),
		RefreshToken: aws.ToString(result.RefreshToken),
		ExpiresIn:    result.ExpiresIn,
		TokenType:    aws.ToString(result.TokenType),
	}
}

// translate converts SDK failures into *passwordless.ProviderError so the
// protocol layer can branch on the Cognito error name.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return &passwordless.ProviderError{
			Name:    apiErr.ErrorCode(),
			Message: apiErr.ErrorMessage(),
		}
	}
	return err
}
