// Package storfile provides a client for a storfile server over TCP.
//
// Example:
//
//	client, err := storfile.Connect(storfile.WithPort(9999))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	stored, err := client.Put("foo", []byte("bar"))
//	value, found, err := client.Get("foo")
package storfile
