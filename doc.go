// Package s3sync keeps local attachment files and an S3-compatible bucket in
// step.
//
// A Syncer owns everything an upload or download needs: the credential
// provider it asks for the active storage credentials, the storage client
// built from them, the duplicate detector, the delete-and-confirm machine and
// the public URL resolver. It also owns the in-memory registries that stop two
// uploads of the same key from racing and stop a file watcher from uploading
// a file the syncer has just written.
//
// Uploads hash the file once, skip the transfer when the same content is
// already stored under the sync prefix, write the four custom metadata fields
// with the object and verify the stored hash afterwards. Downloads verify the
// written file against the stored hash and remove it on mismatch.
//
// Example usage:
//
//	store := credentials.NewStore(s3types.Credentials{
//	    Provider:        s3types.ProviderR2,
//	    AccessKeyID:     "...",
//	    SecretAccessKey: "...",
//	    BucketName:      "papers",
//	    Endpoint:        "https://<account>.r2.cloudflarestorage.com",
//	})
//	syncer := s3sync.New(store, s3sync.WithLogger(logger))
//
//	key := syncer.KeyFor(42, "/home/me/paper.pdf", "")
//	outcome, err := syncer.Upload(ctx, "/home/me/paper.pdf", key)
//	if err != nil {
//	    return err
//	}
//	if outcome.IsDuplicate {
//	    fmt.Println("already stored as", outcome.DuplicateKey)
//	}
//
// Cancelling the context of Upload or Download ends the call with a
// StatusCanceled outcome and a nil error. Every other failure is an
// *errors.Error whose kind can be tested with the errors package helpers.
package s3sync
