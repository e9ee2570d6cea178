package cognito

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-passwordless/passwordless"
)

type stubAPI struct {
	signUpIn    *cognitoidentityprovider.SignUpInput
	signUpOut   *cognitoidentityprovider.SignUpOutput
	signUpErr   error
	initiateIn  *cognitoidentityprovider.InitiateAuthInput
	initiateOut *cognitoidentityprovider.InitiateAuthOutput
	initiateErr error
	respondIn   *cognitoidentityprovider.RespondToAuthChallengeInput
	respondOut  *cognitoidentityprovider.RespondToAuthChallengeOutput
	respondErr  error
	confirmErr  error
	resendErr   error
	updateIn    *cognitoidentityprovider.UpdateUserAttributesInput
	updateErr   error
}

func (s *stubAPI) SignUp(_ context.Context, in *cognitoidentityprovider.SignUpInput, _ ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.SignUpOutput, error) {
	s.signUpIn = in
	return s.signUpOut, s.signUpErr
}

func (s *stubAPI) InitiateAuth(_ context.Context, in *cognitoidentityprovider.InitiateAuthInput, _ ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.InitiateAuthOutput, error) {
	s.initiateIn = in
	return s.initiateOut, s.initiateErr
}

func (s *stubAPI) RespondToAuthChallenge(_ context.Context, in *cognitoidentityprovider.RespondToAuthChallengeInput, _ ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.RespondToAuthChallengeOutput, error) {
	s.respondIn = in
	return s.respondOut, s.respondErr
}

func (s *stubAPI) ConfirmSignUp(_ context.Context, _ *cognitoidentityprovider.ConfirmSignUpInput, _ ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.ConfirmSignUpOutput, error) {
	return &cognitoidentityprovider.ConfirmSignUpOutput{}, s.confirmErr
}

func (s *stubAPI) ResendConfirmationCode(_ context.Context, _ *cognitoidentityprovider.ResendConfirmationCodeInput, _ ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.ResendConfirmationCodeOutput, error) {
	return &cognitoidentityprovider.ResendConfirmationCodeOutput{}, s.resendErr
}

func (s *stubAPI) UpdateUserAttributes(_ context.Context, in *cognitoidentityprovider.UpdateUserAttributesInput, _ ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.UpdateUserAttributesOutput, error) {
	s.updateIn = in
	return &cognitoidentityprovider.UpdateUserAttributesOutput{}, s.updateErr
}

func TestInitiateAuthUsesUserAuthFlow(t *testing.T) {
	stub := &stubAPI{
		initiateOut: &cognitoidentityprovider.InitiateAuthOutput{
			ChallengeName: types.ChallengeNameTypeSelectChallenge,
			Session:       aws.String("sess-1"),
		},
	}
	client := NewWithAPI(stub, "client-1")

	out, err := client.InitiateAuth(context.Background(), "john@example.com")
	require.NoError(t, err)

	require.Equal(t, types.AuthFlowTypeUserAuth, stub.initiateIn.AuthFlow)
	require.Equal(t, "john@example.com", stub.initiateIn.AuthParameters["USERNAME"])
	require.Equal(t, passwordless.ProviderChallengeSelectChallenge, out.ChallengeName)
	require.Equal(t, "sess-1", out.Session)
	require.Nil(t, out.Tokens)
}

func TestSignUpMapsDelivery(t *testing.T) {
	stub := &stubAPI{
		signUpOut: &cognitoidentityprovider.SignUpOutput{
			CodeDeliveryDetails: &types.CodeDeliveryDetailsType{
				Destination: aws.String("j***@example.com"),
			},
		},
	}
	client := NewWithAPI(stub, "client-1")

	out, err := client.SignUp(context.Background(), passwordless.SignUpInput{
		Username:     "john@example.com",
		TempPassword: "Tempxxxx!1",
		Attributes:   map[string]string{"email": "john@example.com"},
	})
	require.NoError(t, err)
	require.True(t, out.CodeDelivered)
	require.Equal(t, "j***@example.com", out.Destination)
	require.Len(t, stub.signUpIn.UserAttributes, 1)
}

func TestRespondMapsTokens(t *testing.T) {
	stub := &stubAPI{
		respondOut: &cognitoidentityprovider.RespondToAuthChallengeOutput{
			AuthenticationResult: &types.AuthenticationResultType{
				AccessToken: aws.String("access"),
				IdToken:     aws.String("id"),
				ExpiresIn:   3600,
				TokenType:   aws.String("Bearer"),
			},
		},
	}
	client := NewWithAPI(stub, "client-1")

	out, err := client.RespondToChallenge(context.Background(), passwordless.RespondInput{
		ChallengeName: passwordless.ProviderChallengeEmailOTP,
		Session:       "sess-2",
		Responses:     map[string]string{"ANSWER": "123456"},
	})
	require.NoError(t, err)
	require.Equal(t, types.ChallengeNameTypeEmailOtp, stub.respondIn.ChallengeName)
	require.NotNil(t, out.Tokens)
	require.Equal(t, "access", out.Tokens.AccessToken)
	require.Equal(t, int32(3600), out.Tokens.ExpiresIn)
}

func TestTranslatePreservesErrorName(t *testing.T) {
	stub := &stubAPI{
		signUpErr: &smithy.GenericAPIError{
			Code:    "UsernameExistsException",
			Message: "An account with the given email already exists.",
		},
	}
	client := NewWithAPI(stub, "client-1")

	_, err := client.SignUp(context.Background(), passwordless.SignUpInput{Username: "john@example.com"})
	require.Error(t, err)
	require.True(t, passwordless.IsProviderError(err, passwordless.ErrNameUsernameExists))
}
