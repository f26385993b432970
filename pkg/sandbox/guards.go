package sandbox

// limitMarker prefixes the RangeError thrown by a guard.
const limitMarker = "sandbox limit:"

// guardSource wraps the built-ins whose native implementation can allocate
// or loop without returning to the interpreter. Each wrapper checks the size
// the call would produce and throws a RangeError past the ceiling. The
// originals stay reachable only from this closure.
const guardSource = `(function (maxString, maxArray) {
	"use strict";

	var define = Object.defineProperty;
	var apply = Reflect.apply;
	var isArray = Array.isArray;

	function tooLarge(what) {
		throw new RangeError("` + limitMarker + ` " + what + " too large");
	}
	function checkString(n) { if (n > maxString) { tooLarge("string"); } }
	function checkArray(n) { if (n > maxArray) { tooLarge("array"); } }
	function lengthOf(o) {
		if (o === null || o === undefined) { return 0; }
		var n = Number(o.length);
		return n > 0 ? n : 0;
	}
	function lock(target, name, value) {
		define(target, name, {value: value, writable: false, configurable: false, enumerable: false});
	}
	function wrap(target, name, make) {
		var original = target[name];
		if (typeof original === "function") { lock(target, name, make(original)); }
	}

	var S = String.prototype;

	wrap(S, "repeat", function (original) {
		return function (count) {
			checkString(String(this).length * (Math.floor(Number(count)) || 0));
			return apply(original, this, arguments);
		};
	});
	wrap(S, "padStart", function (original) {
		return function (target) {
			checkString(Number(target) || 0);
			return apply(original, this, arguments);
		};
	});
	wrap(S, "padEnd", function (original) {
		return function (target) {
			checkString(Number(target) || 0);
			return apply(original, this, arguments);
		};
	});
	wrap(S, "concat", function (original) {
		return function () {
			var total = String(this).length;
			for (var i = 0; i < arguments.length; i++) { total += String(arguments[i]).length; }
			checkString(total);
			return apply(original, this, arguments);
		};
	});
	wrap(S, "split", function (original) {
		return function (separator, limit) {
			var cap = limit === undefined ? maxArray + 1 : Math.min(limit >>> 0, maxArray + 1);
			var parts = apply(original, this, [separator, cap]);
			checkArray(parts.length);
			return parts;
		};
	});

	function replacing(original, everywhere) {
		return function (pattern, replacement) {
			if (typeof replacement !== "function") {
				var n = String(this).length;
				var r = String(replacement).length;
				var global = everywhere || (pattern instanceof RegExp && pattern.global);
				checkString(global ? (n + 1) * Math.max(r, 1) : n + r);
			}
			return apply(original, this, arguments);
		};
	}
	wrap(S, "replace", function (original) { return replacing(original, false); });
	wrap(S, "replaceAll", function (original) { return replacing(original, true); });

	var A = Array.prototype;

	[
		"at", "copyWithin", "entries", "every", "fill", "filter", "find", "findIndex",
		"findLast", "findLastIndex", "forEach", "includes", "indexOf", "keys",
		"lastIndexOf", "map", "pop", "reduce", "reduceRight", "reverse", "shift",
		"slice", "some", "sort", "splice", "toLocaleString", "toReversed", "toSorted",
		"toSpliced", "values", "with"
	].forEach(function (name) {
		wrap(A, name, function (original) {
			return function () {
				checkArray(lengthOf(this));
				return apply(original, this, arguments);
			};
		});
	});

	wrap(A, "push", function (original) {
		return function () {
			checkArray(lengthOf(this) + arguments.length);
			return apply(original, this, arguments);
		};
	});
	wrap(A, "unshift", function (original) {
		return function () {
			checkArray(lengthOf(this) + arguments.length);
			return apply(original, this, arguments);
		};
	});
	wrap(A, "concat", function (original) {
		return function () {
			var total = lengthOf(this);
			for (var i = 0; i < arguments.length; i++) {
				total += isArray(arguments[i]) ? arguments[i].length : 1;
			}
			checkArray(total);
			return apply(original, this, arguments);
		};
	});
	wrap(A, "join", function (original) {
		return function (separator) {
			var n = lengthOf(this);
			checkArray(n);
			var step = separator === undefined ? 1 : String(separator).length;
			var total = 0;
			for (var i = 0; i < n; i++) {
				var v = this[i];
				total += step;
				if (v !== null && v !== undefined) { total += String(v).length; }
				checkString(total);
			}
			return apply(original, this, arguments);
		};
	});

	function flatten(source, depth, out) {
		var n = lengthOf(source);
		checkArray(n);
		for (var i = 0; i < n; i++) {
			if (!(i in source)) { continue; }
			var v = source[i];
			if (depth > 0 && isArray(v)) {
				flatten(v, depth - 1, out);
				continue;
			}
			checkArray(out.length + 1);
			out[out.length] = v;
		}
		return out;
	}
	lock(A, "flat", function (depth) {
		var d = depth === undefined ? 1 : Math.floor(Number(depth)) || 0;
		return flatten(this, d, []);
	});
	lock(A, "flatMap", function (fn, thisArg) {
		return flatten(A.map.call(this, fn, thisArg), 1, []);
	});

	wrap(Array, "from", function (original) {
		return function (items) {
			checkArray(typeof items === "string" ? items.length : lengthOf(items));
			return apply(original, this, arguments);
		};
	});

	wrap(Function.prototype, "apply", function (original) {
		return function (self, args) {
			checkArray(lengthOf(args));
			return apply(original, this, arguments);
		};
	});
	wrap(Reflect, "apply", function (original) {
		return function (target, self, args) {
			checkArray(lengthOf(args));
			return apply(original, this, arguments);
		};
	});
	wrap(Reflect, "construct", function (original) {
		return function (target, args) {
			checkArray(lengthOf(args));
			return apply(original, this, arguments);
		};
	});
})`
