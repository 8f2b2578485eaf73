// Package secret resolves credentials referenced from simrun configuration.
//
// Configuration strings go through strict environment expansion first
// (see ExpandEnvStrict). The result may then carry secret references of the
// form
//
//	secretref:<provider>:<ref>
//
// either as the whole value or inline ("Bearer secretref:file:squid-token").
// References are resolved by a Provider registered with the Resolver.
//
// Two providers ship with the package: "env" reads a variable from the
// process environment, and "file" reads a file below a base directory, the
// usual shape of mounted cluster secrets. Further providers are added through
// a Registry.
package secret
