/*
Package testutil holds helpers shared by the module's tests.

  - TestContext / CancelledContext: contexts cleaned up with the test
  - MustJSON: compact JSON for table fixtures
  - AssertEventuallyTrue: polling assertion for asynchronous state

Sub-package mocks provides a scripted llm.Provider and recording tools.

	provider := mocks.NewMockProvider().
	    QueueToolCall("get_order_status", `{"order_id":"1001"}`).
	    QueueText("Order 1001 has shipped.")
*/
package testutil
