// Package recipe turns the current pantry contents into a short recipe.
//
// A Generator sends one prompt listing every item name to the completion
// service and parses the reply. The reply must contain a **title** span;
// numbered steps are optional. There is no retry at this layer and no
// partial result: any failure ends the call.
package recipe
