// Package voicelive provides a client for the Azure Voice Live realtime API.
//
// A Link is the single upstream WebSocket connection for one relay session.
// It owns connection lifecycle (lazy reconnect, teardown), builds the
// authenticated connection URL, frames outbound commands as JSON envelopes,
// and feeds inbound server events to a channel consumed by the session core.
//
//	cfg, err := voicelive.ConfigFromEnv()
//	if err != nil {
//	    return err
//	}
//	link := voicelive.NewLink(sessionID, cfg, tokens)
//	if err := link.Connect(ctx); err != nil {
//	    return err
//	}
//	defer link.Disconnect()
//
//	for inb := range link.Events() {
//	    if inb.Err != nil {
//	        break
//	    }
//	    handle(inb.Event)
//	}
//
// Commands are sent with Send; a closed link reconnects on demand:
//
//	err = link.Send(ctx, voicelive.TypeInputAudioBufferAppend,
//	    map[string]any{"audio": chunkBase64})
package voicelive
