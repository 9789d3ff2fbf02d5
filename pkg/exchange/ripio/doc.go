// Package ripio implements the Exchange interface for Ripio Trade.
// Every REST call, including the websocket ticket, is signed with
// HMAC-SHA256 over timestamp, method, path and body.
//
// Ripio Trade API documentation: https://apidocs.ripiotrade.co/v4
package ripio
