// Package peer implements the client side of the realtime voice-to-voice
// peer channel used by the translation session.
//
// The channel is an ordered, reliable stream of JSON control/event objects.
// Two transports are provided behind the same Session interface: WebRTC
// (media tracks plus a data channel, for interactive capture/playback) and
// WebSocket (control and events only, for headless use).
//
// Connecting over WebRTC first fetches an ephemeral credential:
//
//	client := peer.NewClient(peer.ClientConfig{
//	    CredentialURL: "https://example.com/session",
//	})
//	session, err := client.ConnectWebRTC(ctx)
//	if err != nil {
//	    return err
//	}
//	defer session.Close()
//
// Events are consumed through an iterator:
//
//	for event, err := range session.Events() {
//	    if err != nil {
//	        return err
//	    }
//	    switch event.Type {
//	    case peer.EventTypeResponseDelta:
//	        fmt.Print(event.Delta)
//	    case peer.EventTypeAudioDelta:
//	        play(event.Audio)
//	    }
//	}
package peer
