// Package tclsdk is a client for the TCL Home cloud. It authenticates a user
// account, walks the federation chain from the SSO token through the SaaS and
// Cognito tokens down to temporary AWS credentials, discovers the account's
// registered devices, and dispatches SigV4-signed shadow-update commands to
// them through the AWS IoT message broker.
//
// The entry points are Client.Authenticate, which returns a *Session, and the
// Directory and Dispatcher types, which operate on that session. A Refresher
// keeps the session's credentials fresh in the background; all refresh paths
// funnel through a single in-flight operation, so concurrent triggers share
// one network chain.
package tclsdk
